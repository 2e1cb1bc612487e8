package protocol

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
)

// fakeConn is an in-memory Conn for exercising the Engine without a real
// socket. Lines written by the engine accumulate in out; ReadDotBody and
// ReadLine are driven by pre-seeded queues.
type fakeConn struct {
	lines    []string // queued lines for ReadLine
	dotBody  [][]string
	out      []string
	status   []string
}

func (c *fakeConn) ReadLine() (string, error) {
	if len(c.lines) == 0 {
		return "", fmt.Errorf("EOF")
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	return line, nil
}

func (c *fakeConn) WriteStatusLine(code int, text string) error {
	c.status = append(c.status, fmt.Sprintf("%d %s", code, text))
	c.out = append(c.out, fmt.Sprintf("%d %s", code, text))
	return nil
}

func (c *fakeConn) WriteLine(line string) error {
	c.out = append(c.out, line)
	return nil
}

func (c *fakeConn) WriteDotBody(lines []string) error {
	c.out = append(c.out, lines...)
	c.out = append(c.out, ".")
	return nil
}

func (c *fakeConn) ReadDotBody() ([]string, error) {
	if len(c.dotBody) == 0 {
		return nil, fmt.Errorf("no dot body queued")
	}
	body := c.dotBody[0]
	c.dotBody = c.dotBody[1:]
	return body, nil
}

func (c *fakeConn) lastStatus() string {
	if len(c.status) == 0 {
		return ""
	}
	return c.status[len(c.status)-1]
}

// fakeGroupIterator and fakeArticleIterator adapt plain slices to the
// capability iterator interfaces.
type fakeGroupIterator struct {
	groups []capability.Group
	i      int
}

func (it *fakeGroupIterator) Next() (capability.Group, bool) {
	if it.i >= len(it.groups) {
		return capability.Group{}, false
	}
	g := it.groups[it.i]
	it.i++
	return g, true
}
func (it *fakeGroupIterator) Err() error { return nil }

type fakeArticleIterator struct {
	articles []domain.Article
	i        int
}

func (it *fakeArticleIterator) Next() (domain.Article, bool) {
	if it.i >= len(it.articles) {
		return domain.Article{}, false
	}
	a := it.articles[it.i]
	it.i++
	return a, true
}
func (it *fakeArticleIterator) Err() error { return nil }

// fakePersistence is a minimal in-memory PersistenceService sufficient
// to drive the protocol engine's handlers end to end.
type fakePersistence struct {
	groups         map[string]capability.Group
	articles       map[string]domain.Article                   // by message-id
	links          map[string]map[string]domain.ArticleNumber // group -> message-id -> number
	peers          []domain.Peer
	feeds          map[string][]domain.Feed
	nextNum        map[string]domain.ArticleNumber
	hostIdentifier string
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		groups:   map[string]capability.Group{},
		articles: map[string]domain.Article{},
		links:    map[string]map[string]domain.ArticleNumber{},
		feeds:    map[string][]domain.Feed{},
		nextNum:  map[string]domain.ArticleNumber{},
	}
}

func (p *fakePersistence) addTestGroup(name string, low, high int64, mode domain.PostingMode) {
	n, _ := domain.NewNewsgroupName(name)
	p.groups[name] = capability.Group{
		Name:        n,
		Description: "test group " + name,
		PostingMode: mode,
		CreatedAt:   time.Now().Add(-24 * time.Hour),
		Range:       domain.NewGroupRange(low, high),
	}
	p.nextNum[name] = domain.ArticleNumber(high + 1)
}

func (p *fakePersistence) GetGroupByName(ctx context.Context, name domain.NewsgroupName) (capability.Group, error) {
	g, ok := p.groups[name.String()]
	if !ok {
		return capability.Group{}, capability.ErrNotFound
	}
	return g, nil
}

func (p *fakePersistence) AddGroup(ctx context.Context, name domain.NewsgroupName, description string, mode domain.PostingMode, createdAt time.Time, createdBy string, ignored bool) error {
	if _, ok := p.groups[name.String()]; ok {
		return &capability.ErrExistingNewsgroup{Name: name.String()}
	}
	p.groups[name.String()] = capability.Group{Name: name, Description: description, PostingMode: mode, CreatedAt: createdAt, CreatedBy: createdBy, Ignored: ignored, Range: domain.NewGroupRange(0, 0)}
	return nil
}

func (p *fakePersistence) ListAllGroups(ctx context.Context, includeIgnored, includeLocal bool) (capability.GroupIterator, error) {
	names := make([]string, 0, len(p.groups))
	for name := range p.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	var groups []capability.Group
	for _, name := range names {
		g := p.groups[name]
		if g.Ignored && !includeIgnored {
			continue
		}
		if g.Name.IsLocalOnly() && !includeLocal {
			continue
		}
		groups = append(groups, g)
	}
	return &fakeGroupIterator{groups: groups}, nil
}

func (p *fakePersistence) SetIgnored(ctx context.Context, name domain.NewsgroupName, ignored bool) error {
	g, ok := p.groups[name.String()]
	if !ok {
		return capability.ErrNotFound
	}
	g.Ignored = ignored
	p.groups[name.String()] = g
	return nil
}

func (p *fakePersistence) HasArticle(ctx context.Context, id domain.MessageId) (bool, error) {
	_, ok := p.articles[id.String()]
	return ok, nil
}

func (p *fakePersistence) GetArticle(ctx context.Context, id domain.MessageId) (domain.Article, error) {
	a, ok := p.articles[id.String()]
	if !ok {
		return domain.Article{}, capability.ErrNotFound
	}
	return a, nil
}

func (p *fakePersistence) RejectArticle(ctx context.Context, id domain.MessageId) error {
	a, ok := p.articles[id.String()]
	if !ok {
		a = domain.Article{MessageID: id}
	}
	a.Rejected = true
	p.articles[id.String()] = a
	return nil
}

func (p *fakePersistence) GetFeeds(ctx context.Context, group domain.NewsgroupName) ([]domain.Feed, error) {
	return p.feeds[group.String()], nil
}

func (p *fakePersistence) AddFeed(ctx context.Context, group domain.NewsgroupName, peerAddress string) error {
	p.feeds[group.String()] = append(p.feeds[group.String()], domain.Feed{Newsgroup: group, PeerAddress: peerAddress})
	return nil
}

func (p *fakePersistence) SetFeedLastSync(ctx context.Context, group domain.NewsgroupName, peerAddress string, t time.Time) error {
	feeds := p.feeds[group.String()]
	for i := range feeds {
		if feeds[i].PeerAddress == peerAddress {
			tc := t
			feeds[i].LastSyncTime = &tc
		}
	}
	return nil
}

func (p *fakePersistence) GetGroupArticle(ctx context.Context, group domain.NewsgroupName, numOrMid string) (domain.NewsgroupArticle, domain.Article, error) {
	return domain.NewsgroupArticle{}, domain.Article{}, capability.ErrNotFound
}

func (p *fakePersistence) linkArticle(group domain.NewsgroupName, article domain.Article, isAllowed bool) domain.NewsgroupArticle {
	if p.links[group.String()] == nil {
		p.links[group.String()] = map[string]domain.ArticleNumber{}
	}
	num := p.nextNum[group.String()]
	if num == 0 {
		num = domain.NoArticlesLowestNumber
	}
	p.links[group.String()][article.MessageID.String()] = num
	p.nextNum[group.String()] = num + 1

	g := p.groups[group.String()]
	if g.Range.Empty() {
		g.Range = domain.GroupRange{Low: num, High: num}
	} else if num > g.Range.High {
		g.Range.High = num
	}
	p.groups[group.String()] = g

	return domain.NewsgroupArticle{Newsgroup: group, Number: num, MessageID: article.MessageID, IsAllowed: isAllowed}
}

func (p *fakePersistence) AddArticle(ctx context.Context, group domain.NewsgroupName, article domain.Article, isAllowed bool) (domain.NewsgroupArticle, error) {
	if _, ok := p.articles[article.MessageID.String()]; ok {
		return domain.NewsgroupArticle{}, &capability.ErrExistingArticle{MessageID: article.MessageID.String()}
	}
	p.articles[article.MessageID.String()] = article
	return p.linkArticle(group, article, isAllowed), nil
}

func (p *fakePersistence) IncludeArticle(ctx context.Context, group domain.NewsgroupName, existing domain.Article, isAllowed bool) (domain.NewsgroupArticle, error) {
	if _, ok := p.articles[existing.MessageID.String()]; !ok {
		p.articles[existing.MessageID.String()] = existing
	}
	return p.linkArticle(group, existing, isAllowed), nil
}

func (p *fakePersistence) GetArticlesSince(ctx context.Context, group domain.NewsgroupName, since time.Time) (capability.ArticleIterator, error) {
	var out []domain.Article
	for mid, num := range p.links[group.String()] {
		_ = num
		out = append(out, p.articles[mid])
	}
	return &fakeArticleIterator{articles: out}, nil
}

func (p *fakePersistence) GetCurrentArticle(ctx context.Context, group domain.NewsgroupName, number domain.ArticleNumber) (domain.NewsgroupArticle, error) {
	for mid, num := range p.links[group.String()] {
		if num == number {
			return domain.NewsgroupArticle{Newsgroup: group, Number: num, MessageID: p.articles[mid].MessageID, IsAllowed: true}, nil
		}
	}
	return domain.NewsgroupArticle{}, capability.ErrNotFound
}

func (p *fakePersistence) ListArticles(ctx context.Context, group domain.NewsgroupName, r domain.GroupRange) ([]capability.ArticleListItem, error) {
	var items []capability.ArticleListItem
	for mid, num := range p.links[group.String()] {
		if num < r.Low || num > r.High {
			continue
		}
		items = append(items, capability.ArticleListItem{Number: num, Article: p.articles[mid]})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })
	return items, nil
}

func (p *fakePersistence) GetPeers(ctx context.Context) ([]domain.Peer, error) {
	return p.peers, nil
}

func (p *fakePersistence) AddPeer(ctx context.Context, label, address, authUsername, authPassword string) error {
	p.peers = append(p.peers, domain.Peer{Label: label, Address: address, AuthUsername: authUsername, AuthPassword: authPassword})
	return nil
}

func (p *fakePersistence) SetPeerListLastFetched(ctx context.Context, address string, t time.Time) error {
	for i := range p.peers {
		if p.peers[i].Address == address {
			stamp := t
			p.peers[i].ListLastFetched = &stamp
			return nil
		}
	}
	return capability.ErrNotFound
}

func (p *fakePersistence) GetHostIdentifier(ctx context.Context) (string, bool, error) {
	if p.hostIdentifier == "" {
		return "", false, nil
	}
	return p.hostIdentifier, true, nil
}

func (p *fakePersistence) SetHostIdentifier(ctx context.Context, id string) error {
	p.hostIdentifier = id
	return nil
}

// fakeIdentity is a trivial IdentityService: any non-empty password
// matching the username reversed authenticates, good enough to drive
// AUTHINFO tests without pulling in bcrypt.
type fakeIdentity struct{}

func (fakeIdentity) Authenticate(ctx context.Context, subject, credentials string) (string, bool, error) {
	if credentials == "correct-horse" {
		return "token-" + subject, true, nil
	}
	return "", false, nil
}
func (fakeIdentity) IsValid(ctx context.Context, token string) (bool, error) { return token != "", nil }
func (fakeIdentity) HostIdentifier(ctx context.Context) (string, error)      { return "test.invalid", nil }
func (fakeIdentity) CreateMessageID(ctx context.Context, headers *domain.ArticleHeaders) (domain.MessageId, error) {
	return domain.NewMessageId("<generated@test.invalid>")
}

// fakePolicy accepts everything unless the group is named "moderated.x",
// in which case articles are quarantined.
type fakePolicy struct{}

func (fakePolicy) IsPostingAllowed(ctx context.Context, submitter string) (bool, error) { return true, nil }
func (fakePolicy) IsIHaveTransferAllowed(ctx context.Context, submitter string) (bool, error) {
	return true, nil
}
func (fakePolicy) IsNewsgroupAllowed(ctx context.Context, name domain.NewsgroupName, mode domain.PostingMode, estNumArticles int64, advertiser string) (bool, error) {
	return true, nil
}
func (fakePolicy) IsArticleAllowed(ctx context.Context, id domain.MessageId, headers *domain.ArticleHeaders, body string, destination domain.NewsgroupName, mode domain.PostingMode, submitter string) (bool, error) {
	return !strings.Contains(destination.String(), "quarantine"), nil
}

func joinDot(lines []string) string {
	var b bytes.Buffer
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	return b.String()
}
