package peersync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/wire"
)

// Client is an outbound NNTP client session to one peer, framed over
// wire.Conn the same way the accepting server side is, via
// wire.NewStreamConn. Grounded on internal/nntp/nntp-client.go's
// BackendConn.Connect (dial, welcome-code check, persistent textproto
// connection reused across commands) and nntp-client-commands.go's
// command bodies, reshaped onto capability.NetworkTransport and
// domain's typed values instead of net.Conn and *models.Article.
type Client struct {
	conn         *wire.Conn
	peerAddress  string
	capabilities map[domain.PeerCapability]bool
}

// wireDateLayout is the "yyyyMMdd HHmmss" form NEWGROUPS/NEWNEWS use.
const wireDateLayout = "20060102 150405"

// Dial opens an outbound connection to peer, checks the welcome code,
// and negotiates capabilities.
func Dial(ctx context.Context, transport capability.NetworkTransport, peer domain.Peer, timeout time.Duration) (*Client, error) {
	streams, err := transport.ConnectToPeer(ctx, capability.DialConfig{
		Address:        peer.Address,
		ConnectTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing peer %s: %w", peer.Address, err)
	}

	conn := wire.NewStreamConn(streams, streams.RemoteAddress())
	code, _, err := conn.ReadCodeLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading greeting from %s: %w", peer.Address, err)
	}
	if code != int(domain.CodePostingAllowed) && code != int(domain.CodeReadingOnly) {
		conn.Close()
		return nil, fmt.Errorf("unexpected greeting from %s: %d", peer.Address, code)
	}

	c := &Client{conn: conn, peerAddress: peer.Address}
	if err := c.negotiateCapabilities(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) negotiateCapabilities() error {
	c.capabilities = make(map[domain.PeerCapability]bool)
	if err := c.conn.WriteLine("CAPABILITIES"); err != nil {
		return fmt.Errorf("sending CAPABILITIES: %w", err)
	}
	code, _, err := c.conn.ReadCodeLine()
	if err != nil {
		return fmt.Errorf("reading CAPABILITIES response: %w", err)
	}
	if code != int(domain.CodeCapabilitiesFollow) {
		return fmt.Errorf("unexpected CAPABILITIES response: %d", code)
	}
	lines, err := c.conn.ReadDotBody()
	if err != nil {
		return fmt.Errorf("reading CAPABILITIES body: %w", err)
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch domain.PeerCapability(strings.ToUpper(fields[0])) {
		case domain.CapabilityReader:
			c.capabilities[domain.CapabilityReader] = true
		case domain.CapabilityList:
			c.capabilities[domain.CapabilityList] = true
		case domain.CapabilityNewNews:
			c.capabilities[domain.CapabilityNewNews] = true
		case domain.CapabilityNewGroups:
			c.capabilities[domain.CapabilityNewGroups] = true
		case domain.CapabilityIHave:
			c.capabilities[domain.CapabilityIHave] = true
		}
	}
	return nil
}

// Has reports whether the peer advertised cap during negotiation.
func (c *Client) Has(cap domain.PeerCapability) bool { return c.capabilities[cap] }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Probe is the cache's health check: any working request/response round
// trip proves the connection is alive.
func (c *Client) Probe() error {
	_, err := c.Date()
	return err
}

// Date reads the peer's UTC clock via DATE.
func (c *Client) Date() (time.Time, error) {
	if err := c.conn.WriteLine("DATE"); err != nil {
		return time.Time{}, fmt.Errorf("sending DATE: %w", err)
	}
	code, text, err := c.conn.ReadCodeLine()
	if err != nil {
		return time.Time{}, fmt.Errorf("reading DATE response: %w", err)
	}
	if code != int(domain.CodeDate) {
		return time.Time{}, fmt.Errorf("unexpected DATE response: %d", code)
	}
	t, err := time.Parse("20060102150405", strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing DATE response %q: %w", text, err)
	}
	return t.UTC(), nil
}

// GroupAdvertisement is one "name high low status" line from LIST
// ACTIVE or NEWGROUPS.
type GroupAdvertisement struct {
	Name  domain.NewsgroupName
	Range domain.GroupRange
	Mode  domain.PostingMode
}

// NewGroups fetches groups the peer has created since since, via
// NEWGROUPS.
func (c *Client) NewGroups(since time.Time) ([]GroupAdvertisement, error) {
	cmd := fmt.Sprintf("NEWGROUPS %s GMT", since.UTC().Format(wireDateLayout))
	if err := c.conn.WriteLine(cmd); err != nil {
		return nil, fmt.Errorf("sending NEWGROUPS: %w", err)
	}
	code, _, err := c.conn.ReadCodeLine()
	if err != nil {
		return nil, fmt.Errorf("reading NEWGROUPS response: %w", err)
	}
	if code != int(domain.CodeNewGroupsFollow) {
		return nil, fmt.Errorf("unexpected NEWGROUPS response: %d", code)
	}
	lines, err := c.conn.ReadDotBody()
	if err != nil {
		return nil, fmt.Errorf("reading NEWGROUPS body: %w", err)
	}
	var ads []GroupAdvertisement
	for _, line := range lines {
		ad, ok := parseGroupLine(line)
		if !ok {
			continue
		}
		ads = append(ads, ad)
	}
	return ads, nil
}

func parseGroupLine(line string) (GroupAdvertisement, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return GroupAdvertisement{}, false
	}
	name, err := domain.NewNewsgroupName(fields[0])
	if err != nil {
		return GroupAdvertisement{}, false
	}
	high, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return GroupAdvertisement{}, false
	}
	low, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return GroupAdvertisement{}, false
	}
	return GroupAdvertisement{
		Name:  name,
		Range: domain.NewGroupRange(low, high),
		Mode:  domain.PostingModeFromWire(fields[3]),
	}, true
}

// NewNews fetches message-ids new in group since since, via NEWNEWS.
func (c *Client) NewNews(group domain.NewsgroupName, since time.Time) ([]domain.MessageId, error) {
	cmd := fmt.Sprintf("NEWNEWS %s %s GMT", group.String(), since.UTC().Format(wireDateLayout))
	if err := c.conn.WriteLine(cmd); err != nil {
		return nil, fmt.Errorf("sending NEWNEWS: %w", err)
	}
	code, _, err := c.conn.ReadCodeLine()
	if err != nil {
		return nil, fmt.Errorf("reading NEWNEWS response: %w", err)
	}
	if code != int(domain.CodeNewNewsFollow) {
		return nil, fmt.Errorf("unexpected NEWNEWS response: %d", code)
	}
	lines, err := c.conn.ReadDotBody()
	if err != nil {
		return nil, fmt.Errorf("reading NEWNEWS body: %w", err)
	}
	var ids []domain.MessageId
	for _, line := range lines {
		id, err := domain.NewMessageId(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListGroupNumbers fetches every article number currently in group via
// LISTGROUP, the fallback feed-discovery path when the peer lacks
// NEWNEWS.
func (c *Client) ListGroupNumbers(group domain.NewsgroupName) ([]domain.ArticleNumber, error) {
	if err := c.conn.WriteLine("LISTGROUP " + group.String()); err != nil {
		return nil, fmt.Errorf("sending LISTGROUP: %w", err)
	}
	code, _, err := c.conn.ReadCodeLine()
	if err != nil {
		return nil, fmt.Errorf("reading LISTGROUP response: %w", err)
	}
	if code == int(domain.CodeNoSuchGroup) {
		return nil, nil
	}
	if code != int(domain.CodeGroupSelected) {
		return nil, fmt.Errorf("unexpected LISTGROUP response: %d", code)
	}
	lines, err := c.conn.ReadDotBody()
	if err != nil {
		return nil, fmt.Errorf("reading LISTGROUP body: %w", err)
	}
	var nums []domain.ArticleNumber
	for _, line := range lines {
		n, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
		if err != nil {
			continue
		}
		nums = append(nums, domain.ArticleNumber(n))
	}
	return nums, nil
}

// StatNumber resolves a group-local article number to its message-id
// via STAT, used by the LISTGROUP fallback path when the peer lacks
// NEWNEWS: LISTGROUP selects the group as a side effect, so a
// numeric STAT in the same session resolves against it. Grounded on
// BackendConn.StatArticle in nntp-client-commands.go, generalized to
// accept a number instead of only a message-id.
func (c *Client) StatNumber(n domain.ArticleNumber) (domain.MessageId, error) {
	if err := c.conn.WriteLine(fmt.Sprintf("STAT %d", n)); err != nil {
		return domain.MessageId{}, fmt.Errorf("sending STAT %d: %w", n, err)
	}
	code, text, err := c.conn.ReadCodeLine()
	if err != nil {
		return domain.MessageId{}, fmt.Errorf("reading STAT response: %w", err)
	}
	if code != int(domain.CodeArticleExists) {
		return domain.MessageId{}, fmt.Errorf("unexpected STAT response: %d", code)
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return domain.MessageId{}, fmt.Errorf("malformed STAT response: %q", text)
	}
	return domain.NewMessageId(fields[1])
}

// FetchedArticle is one pipelined ARTICLE response.
type FetchedArticle struct {
	Requested  domain.MessageId
	Code       int
	StatusText string
	Proto      *domain.ProtoArticle // nil unless Code == 220
}

// FetchArticles pipelines one "ARTICLE <mid>" request per id without
// waiting for intermediate responses, then reads exactly len(ids)
// responses back in request order, matching spec.md 4.5 Phase 1's
// pipelined pull. A transport error aborts the whole batch, since the
// request/response stream is no longer in a known state once one read
// fails.
func (c *Client) FetchArticles(ids []domain.MessageId) ([]FetchedArticle, error) {
	for _, id := range ids {
		if err := c.conn.WriteLine("ARTICLE " + id.String()); err != nil {
			return nil, fmt.Errorf("pipelining ARTICLE %s: %w", id.String(), err)
		}
	}
	results := make([]FetchedArticle, 0, len(ids))
	for _, id := range ids {
		code, text, err := c.conn.ReadCodeLine()
		if err != nil {
			return results, fmt.Errorf("reading ARTICLE response for %s: %w", id.String(), err)
		}
		fa := FetchedArticle{Requested: id, Code: code, StatusText: text}
		if code == int(domain.CodeArticleFollows) {
			lines, err := c.conn.ReadDotBody()
			if err != nil {
				return results, fmt.Errorf("reading ARTICLE body for %s: %w", id.String(), err)
			}
			fa.Proto = domain.ParseProtoArticle(lines)
		}
		results = append(results, fa)
	}
	return results, nil
}

// IHave offers id to the peer via IHAVE; on 335 it streams article and
// returns the peer's final disposition code (235/436/437/...). A
// non-335 initial response (435 not wanted, 436 retry later) is
// returned as-is without sending the article.
func (c *Client) IHave(id domain.MessageId, article domain.Article) (int, error) {
	if err := c.conn.WriteLine("IHAVE " + id.String()); err != nil {
		return 0, fmt.Errorf("sending IHAVE %s: %w", id.String(), err)
	}
	code, _, err := c.conn.ReadCodeLine()
	if err != nil {
		return 0, fmt.Errorf("reading IHAVE response for %s: %w", id.String(), err)
	}
	if code != int(domain.CodeSendArticleToTransfer) {
		return code, nil
	}

	lines := renderArticleLines(article)
	if err := c.conn.WriteDotBody(lines); err != nil {
		return 0, fmt.Errorf("sending article body for %s: %w", id.String(), err)
	}
	finalCode, _, err := c.conn.ReadCodeLine()
	if err != nil {
		return 0, fmt.Errorf("reading transfer result for %s: %w", id.String(), err)
	}
	return finalCode, nil
}

func renderArticleLines(article domain.Article) []string {
	lines := make([]string, 0, len(article.Headers.Names())+2)
	for _, name := range article.Headers.Names() {
		values, _ := article.Headers.Values(name)
		for _, v := range values {
			lines = append(lines, name+": "+v)
		}
	}
	lines = append(lines, "")
	if article.Body != "" {
		lines = append(lines, strings.Split(article.Body, "\r\n")...)
	}
	return lines
}
