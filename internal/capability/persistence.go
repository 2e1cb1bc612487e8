// Package capability declares the external seams the core packages
// (domain, wire, session, protocol, peersync) depend on but do not
// implement: persistence, identity, policy, and network transport. Each
// interface transcribes the corresponding contract in spec.md §6
// unchanged; concrete bindings live in sibling packages
// (internal/persistence/*, internal/identity, internal/policy,
// internal/transport).
package capability

import (
	"context"
	"time"

	"github.com/go-while/nntpd/internal/domain"
)

// ErrExistingNewsgroup is returned by AddGroup when a group of that name
// already exists.
type ErrExistingNewsgroup struct{ Name string }

func (e *ErrExistingNewsgroup) Error() string { return "newsgroup already exists: " + e.Name }

// ErrExistingFeed is returned by AddFeed when the peer is already a feed
// of the newsgroup.
type ErrExistingFeed struct{ Newsgroup, PeerAddress string }

func (e *ErrExistingFeed) Error() string {
	return "feed already exists for " + e.Newsgroup + " -> " + e.PeerAddress
}

// ErrExistingArticle is returned by AddArticle when the message-id is
// already stored.
type ErrExistingArticle struct{ MessageID string }

func (e *ErrExistingArticle) Error() string { return "article already exists: " + e.MessageID }

// ErrExistingPeer is returned by AddPeer when the address is already
// registered.
type ErrExistingPeer struct{ Address string }

func (e *ErrExistingPeer) Error() string { return "peer already exists: " + e.Address }

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

// Group is the persisted view of a newsgroup.
type Group struct {
	Name        domain.NewsgroupName
	Description string
	PostingMode domain.PostingMode
	CreatedAt   time.Time
	CreatedBy   string
	Ignored     bool
	Range       domain.GroupRange
}

// GroupIterator is a restartable finite iterator over groups.
type GroupIterator interface {
	Next() (Group, bool)
	Err() error
}

// ArticleIterator is a lazy finite iterator over stored articles.
type ArticleIterator interface {
	Next() (domain.Article, bool)
	Err() error
}

// PersistenceService is the group/article/peer/feed store. Providers are
// responsible for serializing their own read-modify-write sequences; the
// core holds no locks of its own (spec.md §5).
type PersistenceService interface {
	GetGroupByName(ctx context.Context, name domain.NewsgroupName) (Group, error)
	AddGroup(ctx context.Context, name domain.NewsgroupName, description string, mode domain.PostingMode, createdAt time.Time, createdBy string, ignored bool) error
	ListAllGroups(ctx context.Context, includeIgnored, includeLocal bool) (GroupIterator, error)
	SetIgnored(ctx context.Context, name domain.NewsgroupName, ignored bool) error

	HasArticle(ctx context.Context, id domain.MessageId) (bool, error)
	GetArticle(ctx context.Context, id domain.MessageId) (domain.Article, error)
	RejectArticle(ctx context.Context, id domain.MessageId) error

	GetFeeds(ctx context.Context, group domain.NewsgroupName) ([]domain.Feed, error)
	AddFeed(ctx context.Context, group domain.NewsgroupName, peerAddress string) error
	SetFeedLastSync(ctx context.Context, group domain.NewsgroupName, peerAddress string, t time.Time) error

	GetGroupArticle(ctx context.Context, group domain.NewsgroupName, numOrMid string) (domain.NewsgroupArticle, domain.Article, error)
	AddArticle(ctx context.Context, group domain.NewsgroupName, article domain.Article, isAllowed bool) (domain.NewsgroupArticle, error)
	IncludeArticle(ctx context.Context, group domain.NewsgroupName, existing domain.Article, isAllowed bool) (domain.NewsgroupArticle, error)
	GetArticlesSince(ctx context.Context, group domain.NewsgroupName, since time.Time) (ArticleIterator, error)
	GetCurrentArticle(ctx context.Context, group domain.NewsgroupName, number domain.ArticleNumber) (domain.NewsgroupArticle, error)
	ListArticles(ctx context.Context, group domain.NewsgroupName, r domain.GroupRange) ([]ArticleListItem, error)

	GetPeers(ctx context.Context) ([]domain.Peer, error)
	AddPeer(ctx context.Context, label, address, authUsername, authPassword string) error
	SetPeerListLastFetched(ctx context.Context, address string, t time.Time) error

	// GetHostIdentifier/SetHostIdentifier back IdentityService's
	// generated-id fallback (spec.md §6: "stable opaque string ...
	// immutable for the host's lifetime") once HOSTNAME/COMPUTERNAME are
	// both unset: the id is generated once and persisted here so it
	// survives process restarts instead of being re-rolled every time.
	GetHostIdentifier(ctx context.Context) (string, bool, error)
	SetHostIdentifier(ctx context.Context, id string) error
}

// ArticleListItem pairs a group-local article number with the stored
// article, as returned by a bounded group listing (LISTGROUP, XOVER,
// XHDR all walk this).
type ArticleListItem struct {
	Number  domain.ArticleNumber
	Article domain.Article
}
