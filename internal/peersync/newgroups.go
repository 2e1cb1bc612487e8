package peersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

// FetchNewsgroupsList implements spec.md 4.5's fetchNewsgroupsList: ask
// peer for groups new to us, admit or quarantine each one through
// Policy, make sure peer is a feed of every advertised group, and
// advance peer's listLastFetched to the peer's own clock. The teacher
// never implements a client-side NEWGROUPS fetch loop itself (its
// PeeringManager in nntp-peering.go only describes the pattern data);
// this is built out fully from spec.md's own operation description.
func (s *Synchronizer) FetchNewsgroupsList(ctx context.Context, peer domain.Peer) error {
	client, release, err := s.Cache.Acquire(ctx, peer)
	if err != nil {
		return fmt.Errorf("acquiring connection to %s: %w", peer.Address, err)
	}
	broken := false
	defer func() { release(broken) }()

	since := epoch
	if peer.ListLastFetched != nil {
		since = *peer.ListLastFetched
	}

	ads, err := client.NewGroups(since)
	if err != nil {
		broken = true
		return fmt.Errorf("fetching NEWGROUPS from %s: %w", peer.Address, err)
	}

	for _, ad := range ads {
		if ad.Name.IsLocalOnly() {
			continue
		}
		if err := s.admitAdvertisedGroup(ctx, ad, peer); err != nil {
			continue
		}
		if err := s.ensureFeed(ctx, ad.Name, peer.Address); err != nil {
			continue
		}
	}

	peerNow, err := client.Date()
	if err != nil {
		broken = true
		return fmt.Errorf("reading peer clock from %s: %w", peer.Address, err)
	}
	if peer.ListLastFetched == nil || peerNow.After(*peer.ListLastFetched) {
		_ = s.Persistence.SetPeerListLastFetched(ctx, peer.Address, peerNow)
	}
	return nil
}

var epoch = time.Unix(0, 0).UTC()

// admitAdvertisedGroup creates the local group record if absent,
// consulting Policy for the ignored disposition; an already-present
// group is left as-is.
func (s *Synchronizer) admitAdvertisedGroup(ctx context.Context, ad GroupAdvertisement, peer domain.Peer) error {
	if _, err := s.Persistence.GetGroupByName(ctx, ad.Name); err == nil {
		return nil
	}

	ignored := false
	if s.Policy != nil {
		allowed, err := s.Policy.IsNewsgroupAllowed(ctx, ad.Name, ad.Mode, ad.Range.Count(), peer.Label)
		ignored = err != nil || !allowed
	}
	err := s.Persistence.AddGroup(ctx, ad.Name, "", ad.Mode, s.now(), peer.Label, ignored)
	if err != nil {
		// Lost a race with another sync task or local admin; not fatal,
		// the group exists either way. Any other failure propagates.
		var exists *capability.ErrExistingNewsgroup
		if errors.As(err, &exists) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Synchronizer) ensureFeed(ctx context.Context, group domain.NewsgroupName, peerAddress string) error {
	feeds, err := s.Persistence.GetFeeds(ctx, group)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		if f.PeerAddress == peerAddress {
			return nil
		}
	}
	if err := s.Persistence.AddFeed(ctx, group, peerAddress); err != nil {
		// Already present (race) is fine; any other failure propagates.
		var exists *capability.ErrExistingFeed
		if errors.As(err, &exists) {
			return nil
		}
		return err
	}
	return nil
}
