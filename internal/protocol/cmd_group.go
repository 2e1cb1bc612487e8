package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// handleGroup handles GROUP. Grounded on handleGroup in
// nntp-cmd-group.go, reshaped onto the capability seam and generalized
// to the sentinel-coerced GroupRange.
func (e *Engine) handleGroup(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) != 1 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "GROUP requires exactly one argument")
	}
	name, err := domain.NewNewsgroupName(args[0])
	if err != nil {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid newsgroup name")
	}

	group, err := e.Persistence.GetGroupByName(ctx, name)
	if err != nil {
		sess.ResetGroup()
		return e.failKind(conn, sess, KindUnknownGroup, "No such newsgroup")
	}
	if group.Ignored {
		sess.ResetGroup()
		return e.failKind(conn, sess, KindUnknownGroup, "Newsgroup ignored")
	}

	sess.SelectGroup(name, group.Range)
	return e.reply(conn, sess, domain.CodeGroupSelected,
		fmt.Sprintf("%d %d %d %s", group.Range.Count(), group.Range.Low, group.Range.High, name.String()))
}

// handleListGroup handles LISTGROUP. Grounded on handleListGroup in
// nntp-cmd-group.go, extended with the optional range argument spec.md
// names but the teacher does not implement.
func (e *Engine) handleListGroup(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	var name domain.NewsgroupName
	var rangeArg string

	switch len(args) {
	case 0:
		g, ok := sess.CurrentGroup()
		if !ok {
			return e.failKind(conn, sess, KindNoGroupSelected, "No newsgroup selected")
		}
		name = g
	case 1, 2:
		n, err := domain.NewNewsgroupName(args[0])
		if err != nil {
			return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid newsgroup name")
		}
		name = n
		if len(args) == 2 {
			rangeArg = args[1]
		}
	default:
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "LISTGROUP takes at most two arguments")
	}

	group, err := e.Persistence.GetGroupByName(ctx, name)
	if err != nil || group.Ignored {
		return e.failKind(conn, sess, KindUnknownGroup, "No such newsgroup")
	}

	r := group.Range
	if rangeArg != "" {
		parsed, ok := parseArticleRange(rangeArg, group.Range)
		if !ok {
			return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid range")
		}
		r = parsed
	}

	items, err := e.Persistence.ListArticles(ctx, name, r)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to retrieve article list")
	}

	sess.SelectGroup(name, group.Range)

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, strconv.FormatUint(uint64(item.Number), 10))
	}
	return e.replyMultiline(conn, sess, domain.CodeGroupSelected,
		fmt.Sprintf("%d %d %d %s", group.Range.Count(), group.Range.Low, group.Range.High, name.String()), lines)
}

// parseArticleRange parses "N" or "N-" or "N-M" against the group's
// actual bounds, clamping to them.
func parseArticleRange(raw string, bounds domain.GroupRange) (domain.GroupRange, bool) {
	low, high, found := strings.Cut(raw, "-")
	loN, err := strconv.ParseUint(low, 10, 32)
	if err != nil {
		return domain.GroupRange{}, false
	}
	r := domain.GroupRange{Low: domain.ArticleNumber(loN), High: bounds.High}
	if found {
		if high == "" {
			r.High = bounds.High
		} else {
			hiN, err := strconv.ParseUint(high, 10, 32)
			if err != nil {
				return domain.GroupRange{}, false
			}
			r.High = domain.ArticleNumber(hiN)
		}
	} else {
		r.High = r.Low
	}
	if r.Low < bounds.Low {
		r.Low = bounds.Low
	}
	if r.High > bounds.High {
		r.High = bounds.High
	}
	return r, true
}
