// Package peersync implements the Peer Synchronizer: a two-phase
// pull/push replication engine that keeps subscribed newsgroups
// consistent across peer nodes using NEWGROUPS, NEWNEWS, ARTICLE
// (pipelined), and IHAVE. It is driven externally on a schedule rather
// than by an accepted connection, and opens outbound NNTP client
// sessions through the same capability.NetworkTransport seam the
// Protocol Engine's server side uses.
package peersync

import (
	"context"
	"sync"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

// Cache is the process-wide peer-connection cache: one live outbound
// connection per peer, created lazily, with one outbound session per
// peer at a time while unrelated peers proceed in parallel. Grounded on
// internal/nntp/nntp-backend-pool.go's Pool, reshaped from a
// fixed-size channel of N connections per backend (the teacher serves
// read-heavy fetch fan-out) to a single slot per peer, since this
// node's Synchronizer contract is one outbound session per peer.
type Cache struct {
	transport   capability.NetworkTransport
	dialTimeout time.Duration

	mu    sync.Mutex
	slots map[string]*peerSlot
}

type peerSlot struct {
	mu     sync.Mutex
	client *Client
}

// NewCache returns an empty cache dialing through transport, applying
// dialTimeout to every connection it opens.
func NewCache(transport capability.NetworkTransport, dialTimeout time.Duration) *Cache {
	return &Cache{
		transport:   transport,
		dialTimeout: dialTimeout,
		slots:       make(map[string]*peerSlot),
	}
}

func (c *Cache) slotFor(address string) *peerSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[address]
	if !ok {
		s = &peerSlot{}
		c.slots[address] = s
	}
	return s
}

// Acquire returns the peer's cached connection, dialing one if absent,
// and a release function the caller MUST call exactly once when done.
// release(true) reports the connection as broken (reads/writes failed,
// or a health probe errored): the cached client is closed and evicted
// so the next Acquire redials. Acquiring different peers may proceed
// concurrently; acquiring the same peer serializes.
func (c *Cache) Acquire(ctx context.Context, peer domain.Peer) (*Client, func(broken bool), error) {
	s := c.slotFor(peer.Address)
	s.mu.Lock()
	if s.client == nil {
		client, err := Dial(ctx, c.transport, peer, c.dialTimeout)
		if err != nil {
			s.mu.Unlock()
			return nil, nil, err
		}
		s.client = client
	}
	client := s.client
	release := func(broken bool) {
		if broken && s.client != nil {
			s.client.Close()
			s.client = nil
		}
		s.mu.Unlock()
	}
	return client, release, nil
}

// CloseAll tears down every cached connection and empties the map
// (closeAllConnections in spec.md 4.5.1).
func (c *Cache) CloseAll() {
	c.mu.Lock()
	slots := c.slots
	c.slots = make(map[string]*peerSlot)
	c.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.client != nil {
			s.client.Close()
			s.client = nil
		}
		s.mu.Unlock()
	}
}
