// Package memory implements capability.PersistenceService over
// in-process maps guarded by a single sync.RWMutex, grounded on the
// in-memory group index pattern in internal/database/groups_hashmap.go
// (GHmap: plain Go maps, one mutex, no external store). This is the
// standalone/test backend; internal/persistence/sqlite is the durable
// one.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

type groupState struct {
	group capability.Group
	// numbers maps article number -> message-id for this group, kept
	// alongside articles so sequence numbers stay group-local.
	numbers map[domain.ArticleNumber]domain.MessageId
	feeds   map[string]*domain.Feed
}

// Store is the in-memory PersistenceService binding.
type Store struct {
	mu             sync.RWMutex
	groups         map[domain.NewsgroupName]*groupState
	articles       map[domain.MessageId]*domain.Article
	peers          map[string]domain.Peer
	hostIdentifier string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		groups:   make(map[domain.NewsgroupName]*groupState),
		articles: make(map[domain.MessageId]*domain.Article),
		peers:    make(map[string]domain.Peer),
	}
}

func (s *Store) GetGroupByName(ctx context.Context, name domain.NewsgroupName) (capability.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return capability.Group{}, capability.ErrNotFound
	}
	return g.group, nil
}

func (s *Store) AddGroup(ctx context.Context, name domain.NewsgroupName, description string, mode domain.PostingMode, createdAt time.Time, createdBy string, ignored bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[name]; ok {
		return &capability.ErrExistingNewsgroup{Name: name.String()}
	}
	s.groups[name] = &groupState{
		group: capability.Group{
			Name:        name,
			Description: description,
			PostingMode: mode,
			CreatedAt:   createdAt,
			CreatedBy:   createdBy,
			Ignored:     ignored,
			Range:       domain.NewGroupRange(0, 0),
		},
		numbers: make(map[domain.ArticleNumber]domain.MessageId),
		feeds:   make(map[string]*domain.Feed),
	}
	return nil
}

func (s *Store) ListAllGroups(ctx context.Context, includeIgnored, includeLocal bool) (capability.GroupIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capability.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if g.group.Ignored && !includeIgnored {
			continue
		}
		if g.group.Name.IsLocalOnly() && !includeLocal {
			continue
		}
		out = append(out, g.group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.String() < out[j].Name.String() })
	return &groupIterator{items: out}, nil
}

func (s *Store) SetIgnored(ctx context.Context, name domain.NewsgroupName, ignored bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return capability.ErrNotFound
	}
	g.group.Ignored = ignored
	return nil
}

func (s *Store) HasArticle(ctx context.Context, id domain.MessageId) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.articles[id]
	return ok, nil
}

func (s *Store) GetArticle(ctx context.Context, id domain.MessageId) (domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return domain.Article{}, capability.ErrNotFound
	}
	return *a, nil
}

func (s *Store) RejectArticle(ctx context.Context, id domain.MessageId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		a = &domain.Article{MessageID: id}
		s.articles[id] = a
	}
	a.Rejected = true
	return nil
}

func (s *Store) GetFeeds(ctx context.Context, group domain.NewsgroupName) ([]domain.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, capability.ErrNotFound
	}
	out := make([]domain.Feed, 0, len(g.feeds))
	for _, f := range g.feeds {
		out = append(out, *f)
	}
	return out, nil
}

func (s *Store) AddFeed(ctx context.Context, group domain.NewsgroupName, peerAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return capability.ErrNotFound
	}
	if _, ok := g.feeds[peerAddress]; ok {
		return &capability.ErrExistingFeed{Newsgroup: group.String(), PeerAddress: peerAddress}
	}
	g.feeds[peerAddress] = &domain.Feed{Newsgroup: group, PeerAddress: peerAddress}
	return nil
}

func (s *Store) SetFeedLastSync(ctx context.Context, group domain.NewsgroupName, peerAddress string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[group]
	if !ok {
		return capability.ErrNotFound
	}
	f, ok := g.feeds[peerAddress]
	if !ok {
		return capability.ErrNotFound
	}
	stamp := t
	f.LastSyncTime = &stamp
	return nil
}

func (s *Store) GetGroupArticle(ctx context.Context, group domain.NewsgroupName, numOrMid string) (domain.NewsgroupArticle, domain.Article, error) {
	return domain.NewsgroupArticle{}, domain.Article{}, capability.ErrNotFound
}

func (s *Store) AddArticle(ctx context.Context, group domain.NewsgroupName, article domain.Article, isAllowed bool) (domain.NewsgroupArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.articles[article.MessageID]; exists {
		return domain.NewsgroupArticle{}, &capability.ErrExistingArticle{MessageID: article.MessageID.String()}
	}
	stored := article
	s.articles[article.MessageID] = &stored

	return s.linkLocked(group, article.MessageID, isAllowed)
}

func (s *Store) IncludeArticle(ctx context.Context, group domain.NewsgroupName, existing domain.Article, isAllowed bool) (domain.NewsgroupArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.articles[existing.MessageID]; !exists {
		stored := existing
		s.articles[existing.MessageID] = &stored
	}
	return s.linkLocked(group, existing.MessageID, isAllowed)
}

// linkLocked assigns the next sequential article number within group
// and extends its range. Caller holds s.mu.
func (s *Store) linkLocked(group domain.NewsgroupName, id domain.MessageId, isAllowed bool) (domain.NewsgroupArticle, error) {
	g, ok := s.groups[group]
	if !ok {
		return domain.NewsgroupArticle{}, capability.ErrNotFound
	}

	var next domain.ArticleNumber
	if g.group.Range.Empty() {
		next = domain.NoArticlesLowestNumber
		g.group.Range = domain.NewGroupRange(int64(next), int64(next))
	} else {
		next = g.group.Range.High + 1
		g.group.Range.High = next
	}
	g.numbers[next] = id

	return domain.NewsgroupArticle{
		Newsgroup: group,
		Number:    next,
		MessageID: id,
		IsAllowed: isAllowed,
	}, nil
}

func (s *Store) GetArticlesSince(ctx context.Context, group domain.NewsgroupName, since time.Time) (capability.ArticleIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, capability.ErrNotFound
	}

	out := make([]domain.Article, 0)
	for _, id := range g.numbers {
		if a, ok := s.articles[id]; ok {
			out = append(out, *a)
		}
	}
	return &articleIterator{items: out}, nil
}

func (s *Store) GetCurrentArticle(ctx context.Context, group domain.NewsgroupName, number domain.ArticleNumber) (domain.NewsgroupArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[group]
	if !ok {
		return domain.NewsgroupArticle{}, capability.ErrNotFound
	}
	id, ok := g.numbers[number]
	if !ok {
		return domain.NewsgroupArticle{}, capability.ErrNotFound
	}
	return domain.NewsgroupArticle{Newsgroup: group, Number: number, MessageID: id, IsAllowed: true}, nil
}

func (s *Store) ListArticles(ctx context.Context, group domain.NewsgroupName, r domain.GroupRange) ([]capability.ArticleListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, capability.ErrNotFound
	}

	out := make([]capability.ArticleListItem, 0)
	for num, id := range g.numbers {
		if num < r.Low || num > r.High {
			continue
		}
		a, ok := s.articles[id]
		if !ok {
			continue
		}
		out = append(out, capability.ArticleListItem{Number: num, Article: *a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) GetPeers(ctx context.Context) ([]domain.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) AddPeer(ctx context.Context, label, address, authUsername, authPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[address]; ok {
		return &capability.ErrExistingPeer{Address: address}
	}
	s.peers[address] = domain.Peer{Label: label, Address: address, AuthUsername: authUsername, AuthPassword: authPassword}
	return nil
}

func (s *Store) SetPeerListLastFetched(ctx context.Context, address string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[address]
	if !ok {
		return capability.ErrNotFound
	}
	stamp := t
	p.ListLastFetched = &stamp
	s.peers[address] = p
	return nil
}

func (s *Store) GetHostIdentifier(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hostIdentifier == "" {
		return "", false, nil
	}
	return s.hostIdentifier, true, nil
}

func (s *Store) SetHostIdentifier(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostIdentifier = id
	return nil
}

type groupIterator struct {
	items []capability.Group
	pos   int
}

func (it *groupIterator) Next() (capability.Group, bool) {
	if it.pos >= len(it.items) {
		return capability.Group{}, false
	}
	g := it.items[it.pos]
	it.pos++
	return g, true
}

func (it *groupIterator) Err() error { return nil }

type articleIterator struct {
	items []domain.Article
	pos   int
}

func (it *articleIterator) Next() (domain.Article, bool) {
	if it.pos >= len(it.items) {
		return domain.Article{}, false
	}
	a := it.items[it.pos]
	it.pos++
	return a, true
}

func (it *articleIterator) Err() error { return nil }
