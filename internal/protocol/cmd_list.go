package protocol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// handleList implements LIST ACTIVE and LIST NEWSGROUPS. Grounded on
// handleList in nntp-cmd-list.go, generalized onto the GroupIterator
// capability instead of a direct SQL cursor.
func (e *Engine) handleList(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	keyword := "ACTIVE"
	if len(args) > 0 {
		keyword = strings.ToUpper(args[0])
	}

	switch keyword {
	case "ACTIVE":
		return e.listActive(ctx, conn, sess)
	case "NEWSGROUPS":
		return e.listNewsgroups(ctx, conn, sess)
	default:
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Unsupported LIST keyword: "+keyword)
	}
}

func (e *Engine) listActive(ctx context.Context, conn Conn, sess *session.Session) error {
	it, err := e.Persistence.ListAllGroups(ctx, false, false)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list newsgroups")
	}
	lines, err := collectActiveLines(it)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list newsgroups")
	}
	return e.replyMultiline(conn, sess, domain.CodeListFollows, "Newsgroups in form \"group high low status\"", lines)
}

func collectActiveLines(it capability.GroupIterator) ([]string, error) {
	var lines []string
	for {
		g, ok := it.Next()
		if !ok {
			break
		}
		lines = append(lines, fmt.Sprintf("%s %d %d %s", g.Name.String(), g.Range.High, g.Range.Low, g.PostingMode.WireStatus()))
	}
	return lines, it.Err()
}

func (e *Engine) listNewsgroups(ctx context.Context, conn Conn, sess *session.Session) error {
	it, err := e.Persistence.ListAllGroups(ctx, false, false)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list newsgroups")
	}
	var lines []string
	for {
		g, ok := it.Next()
		if !ok {
			break
		}
		lines = append(lines, fmt.Sprintf("%s\t%s", g.Name.String(), g.Description))
	}
	if err := it.Err(); err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list newsgroups")
	}
	return e.replyMultiline(conn, sess, domain.CodeListFollows, "Newsgroups in form \"group description\"", lines)
}

// handleNewGroups implements NEWGROUPS date time [GMT], per spec.md §4.4
// and the Open Question resolution to fall back gracefully rather than
// error when the persistence layer lacks group-creation tracking.
func (e *Engine) handleNewGroups(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	since, ok := parseWireDateTime(args)
	if !ok {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "NEWGROUPS requires date and time")
	}

	it, err := e.Persistence.ListAllGroups(ctx, false, false)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list new newsgroups")
	}
	var lines []string
	for {
		g, ok := it.Next()
		if !ok {
			break
		}
		if !g.CreatedAt.Before(since) {
			lines = append(lines, fmt.Sprintf("%s %d %d %s", g.Name.String(), g.Range.High, g.Range.Low, g.PostingMode.WireStatus()))
		}
	}
	if err := it.Err(); err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list new newsgroups")
	}
	return e.replyMultiline(conn, sess, domain.CodeNewGroupsFollow, "New newsgroups follow", lines)
}

// handleNewNews implements NEWNEWS group date time [GMT]. The group
// argument may be a wildmat; this node only matches exact names and
// the literal "*", matching the scope the teacher's own peer fetch
// actually exercises.
func (e *Engine) handleNewNews(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) < 3 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "NEWNEWS requires group, date and time")
	}
	pattern := args[0]
	since, ok := parseWireDateTime(args[1:])
	if !ok {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid date/time")
	}

	var groups []domain.NewsgroupName
	if pattern == "*" {
		it, err := e.Persistence.ListAllGroups(ctx, false, false)
		if err != nil {
			return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list newsgroups")
		}
		for {
			g, ok := it.Next()
			if !ok {
				break
			}
			groups = append(groups, g.Name)
		}
		if err := it.Err(); err != nil {
			return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to list newsgroups")
		}
	} else {
		name, err := domain.NewNewsgroupName(pattern)
		if err != nil {
			return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid newsgroup name")
		}
		groups = []domain.NewsgroupName{name}
	}

	var lines []string
	for _, g := range groups {
		it, err := e.Persistence.GetArticlesSince(ctx, g, since)
		if err != nil {
			continue
		}
		for {
			a, ok := it.Next()
			if !ok {
				break
			}
			lines = append(lines, a.MessageID.String())
		}
	}
	return e.replyMultiline(conn, sess, domain.CodeNewNewsFollow, "New articles follow", lines)
}

// parseWireDateTime parses the NNTP "date time [GMT]" pair, accepting
// both the 6-digit (yymmdd) and 8-digit (yyyymmdd) date forms per RFC
// 3977 §7.3.
func parseWireDateTime(args []string) (time.Time, bool) {
	if len(args) < 2 {
		return time.Time{}, false
	}
	date, clock := args[0], args[1]
	layouts := []string{"20060102 150405", "060102 150405"}
	combined := date + " " + clock
	for _, layout := range layouts {
		if t, err := time.Parse(layout, combined); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
