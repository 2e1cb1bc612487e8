package peersync

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

// Synchronizer drives fetchNewsgroupsList and syncNewsgroup against the
// Persistence/Policy capabilities and a shared peer-connection Cache.
// It holds no per-session state of its own: every call is safe to run
// concurrently for distinct newsgroups, serializing only where two
// calls touch the same peer (enforced by Cache.Acquire).
type Synchronizer struct {
	Persistence capability.PersistenceService
	Policy      capability.PolicyService
	Cache       *Cache

	// Now stubs the wall clock for tests; nil uses time.Now.
	Now func() time.Time
}

func (s *Synchronizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SyncNewsgroup runs the two-phase pull/push replication for group
// across every one of its enabled feeds, per spec.md §4.5: Phase 1
// (pull) completes for every feed before Phase 2 (push) begins for any
// of them. local-prefixed groups are never synced.
func (s *Synchronizer) SyncNewsgroup(ctx context.Context, group domain.NewsgroupName) error {
	if group.IsLocalOnly() {
		return nil
	}
	startOfSync := s.now()

	feeds, err := s.Persistence.GetFeeds(ctx, group)
	if err != nil {
		return err
	}

	peerIdsByFeed := make(map[string][]domain.MessageId, len(feeds))
	for _, feed := range feeds {
		ids, err := s.pullFeed(ctx, group, feed)
		if err != nil {
			log.Printf("[peersync] pull %s from %s: %v", group.String(), feed.PeerAddress, err)
			continue
		}
		peerIdsByFeed[feed.PeerAddress] = ids
	}

	for _, feed := range feeds {
		ids, ok := peerIdsByFeed[feed.PeerAddress]
		if !ok {
			continue // Phase 1 failed for this feed; skip its push too.
		}
		if err := s.pushFeed(ctx, group, feed, ids, startOfSync); err != nil {
			log.Printf("[peersync] push %s to %s: %v", group.String(), feed.PeerAddress, err)
		}
	}
	return nil
}

// pullFeed implements Phase 1 for one feed and returns the set of
// message-ids the peer advertised, used by Phase 2 to exclude articles
// the peer is already known to hold.
func (s *Synchronizer) pullFeed(ctx context.Context, group domain.NewsgroupName, feed domain.Feed) ([]domain.MessageId, error) {
	peer := s.peerFor(ctx, feed.PeerAddress)
	client, release, err := s.Cache.Acquire(ctx, peer)
	if err != nil {
		return nil, err
	}
	broken := false
	defer func() { release(broken) }()

	if !client.Has(domain.CapabilityReader) {
		return nil, nil
	}

	since := epoch
	if feed.LastSyncTime != nil {
		since = *feed.LastSyncTime
	}

	peerIds, err := s.peerMessageIds(client, group, since)
	if err != nil {
		broken = true
		return nil, err
	}

	fetchIds := make([]domain.MessageId, 0, len(peerIds))
	for _, id := range peerIds {
		has, err := s.Persistence.HasArticle(ctx, id)
		if err != nil {
			continue
		}
		if !has {
			fetchIds = append(fetchIds, id)
			continue
		}
		// Already stored (possibly via another group): make sure it is
		// linked into this group too, without refetching it.
		existing, err := s.Persistence.GetArticle(ctx, id)
		if err != nil {
			continue
		}
		if _, err := s.Persistence.IncludeArticle(ctx, group, existing, true); err != nil {
			continue
		}
	}

	if len(fetchIds) == 0 {
		return peerIds, nil
	}

	fetched, err := client.FetchArticles(fetchIds)
	if err != nil {
		broken = true
		return peerIds, err
	}
	for _, fa := range fetched {
		if fa.Code != int(domain.CodeArticleFollows) || fa.Proto == nil {
			continue
		}
		s.storeFetchedArticle(ctx, group, fa)
	}
	return peerIds, nil
}

// peerMessageIds obtains the peer's message-ids for group: via NEWNEWS
// (those new since since) when advertised, else via the LISTGROUP+STAT
// fallback, which returns every article the peer holds in the group
// without filtering by since (spec.md §4.5 Phase 1).
func (s *Synchronizer) peerMessageIds(client *Client, group domain.NewsgroupName, since time.Time) ([]domain.MessageId, error) {
	if client.Has(domain.CapabilityNewNews) {
		return client.NewNews(group, since)
	}
	numbers, err := client.ListGroupNumbers(group)
	if err != nil {
		return nil, err
	}
	ids := make([]domain.MessageId, 0, len(numbers))
	for _, n := range numbers {
		id, err := client.StatNumber(n)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// storeFetchedArticle validates and stores one pulled article, applying
// Policy to the pulled destination group, then fans the same canonical
// copy out to every other local, non-local-only newsgroup named in the
// article's Newsgroups: header (spec.md §4.5 Phase 1 crosspost fan-out).
func (s *Synchronizer) storeFetchedArticle(ctx context.Context, pulledFrom domain.NewsgroupName, fa FetchedArticle) {
	headers := fa.Proto.Headers()
	mid, ok := headers.Get("Message-ID")
	if !ok {
		mid = fa.Requested.String()
	}
	id, err := domain.NewMessageId(mid)
	if err != nil {
		id = fa.Requested
	}
	if id != fa.Requested {
		log.Printf("[peersync] ARTICLE %s returned Message-ID %s, proceeding anyway", fa.Requested.String(), id.String())
	}
	headers.Set("Message-ID", id.String())

	if _, err := headers.ValidateAll(); err != nil {
		_ = s.Persistence.RejectArticle(ctx, id)
		return
	}

	article := domain.Article{MessageID: id, Headers: headers, Body: fa.Proto.Body()}
	groups := parseNewsgroupsHeader(headers)
	stored := false
	for _, group := range groups {
		if group.IsLocalOnly() {
			continue
		}
		g, err := s.Persistence.GetGroupByName(ctx, group)
		if err != nil || g.Ignored {
			continue
		}
		allowed := true
		if s.Policy != nil {
			ok, err := s.Policy.IsArticleAllowed(ctx, id, headers, article.Body, group, g.PostingMode, "")
			allowed = err == nil && ok
		}
		var linkErr error
		if !stored {
			_, linkErr = s.Persistence.AddArticle(ctx, group, article, allowed)
		} else {
			_, linkErr = s.Persistence.IncludeArticle(ctx, group, article, allowed)
		}
		if linkErr == nil {
			stored = true
		}
	}
	if !stored {
		_, _ = s.Persistence.AddArticle(ctx, pulledFrom, article, false)
	}
}

func parseNewsgroupsHeader(headers *domain.ArticleHeaders) []domain.NewsgroupName {
	raw, _ := headers.Get("Newsgroups")
	var groups []domain.NewsgroupName
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		name, err := domain.NewNewsgroupName(field)
		if err != nil {
			continue
		}
		groups = append(groups, name)
	}
	return groups
}

// pushFeed implements Phase 2: serially offer every local article added
// since feed.lastSyncTime that the peer did not just advertise as
// already held. lastSyncTime only advances if every candidate resolved.
func (s *Synchronizer) pushFeed(ctx context.Context, group domain.NewsgroupName, feed domain.Feed, peerIds []domain.MessageId, startOfSync time.Time) error {
	peer := s.peerFor(ctx, feed.PeerAddress)
	client, release, err := s.Cache.Acquire(ctx, peer)
	if err != nil {
		return err
	}
	broken := false
	defer func() { release(broken) }()

	peerHas := make(map[string]bool, len(peerIds))
	for _, id := range peerIds {
		peerHas[id.String()] = true
	}

	since := epoch
	if feed.LastSyncTime != nil {
		since = *feed.LastSyncTime
	}
	it, err := s.Persistence.GetArticlesSince(ctx, group, since)
	if err != nil {
		return err
	}

	allResolved := true
	for {
		a, ok := it.Next()
		if !ok {
			break
		}
		if peerHas[a.MessageID.String()] {
			continue
		}
		code, err := client.IHave(a.MessageID, a)
		if err != nil {
			broken = true
			allResolved = false
			break
		}
		switch code {
		case int(domain.CodeTransferAccepted), int(domain.CodeTransferRejected), int(domain.CodeTransferNotWanted):
			// resolved: shared, permanently declined, or not wanted
		case int(domain.CodeTransferRetryLater):
			broken = true
			allResolved = false
		default:
			log.Printf("[peersync] unexpected IHAVE result %d for %s", code, a.MessageID.String())
			allResolved = false
		}
		if broken {
			break
		}
	}
	if err := it.Err(); err != nil {
		allResolved = false
	}

	if allResolved {
		if feed.LastSyncTime == nil || startOfSync.After(*feed.LastSyncTime) {
			return s.Persistence.SetFeedLastSync(ctx, group, feed.PeerAddress, startOfSync)
		}
	}
	return nil
}

func (s *Synchronizer) peerFor(ctx context.Context, address string) domain.Peer {
	peers, err := s.Persistence.GetPeers(ctx)
	if err == nil {
		for _, p := range peers {
			if p.Address == address {
				return p
			}
		}
	}
	return domain.Peer{Address: address}
}
