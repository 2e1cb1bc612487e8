package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// handleXOver implements XOVER [range], a supplemented feature (SPEC_FULL.md
// Supplemented Features) built on the ListArticles bulk-read capability
// rather than per-article lookups, matching how overview databases are
// read in practice.
func (e *Engine) handleXOver(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) > 1 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "XOVER takes at most one argument")
	}
	group, ok := sess.CurrentGroup()
	if !ok {
		return e.failKind(conn, sess, KindNoGroupSelected, "No newsgroup selected")
	}
	low, high := sess.GroupBounds()
	r := domain.GroupRange{Low: low, High: high}
	if len(args) == 1 {
		parsed, ok := parseArticleRange(args[0], r)
		if !ok {
			return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid range")
		}
		r = parsed
	}

	items, err := e.Persistence.ListArticles(ctx, group, r)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to build overview")
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, renderOverviewLine(item))
	}
	return e.replyMultiline(conn, sess, domain.CodeOverviewFollows, "Overview information follows", lines)
}

// renderOverviewLine builds the tab-separated overview record: article
// number, Subject, From, Date, Message-ID, References, Bytes, Lines.
func renderOverviewLine(item capability.ArticleListItem) string {
	h := item.Article.Headers
	get := func(name string) string {
		if h == nil {
			return ""
		}
		v, _ := h.Get(name)
		return v
	}
	fields := []string{
		strconv.FormatUint(uint64(item.Number), 10),
		get("Subject"),
		get("From"),
		get("Date"),
		item.Article.MessageID.String(),
		get("References"),
		get("Bytes"),
		get("Lines"),
	}
	return strings.Join(fields, "\t")
}

// handleXHdr implements XHDR header [range], a supplemented feature
// returning one header's value per article over a range.
func (e *Engine) handleXHdr(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "XHDR requires a header name")
	}
	header := args[0]
	group, ok := sess.CurrentGroup()
	if !ok {
		return e.failKind(conn, sess, KindNoGroupSelected, "No newsgroup selected")
	}
	low, high := sess.GroupBounds()
	r := domain.GroupRange{Low: low, High: high}
	if len(args) == 2 {
		parsed, ok := parseArticleRange(args[1], r)
		if !ok {
			return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid range")
		}
		r = parsed
	}

	items, err := e.Persistence.ListArticles(ctx, group, r)
	if err != nil {
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, "Failed to read headers")
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		value := "(none)"
		if item.Article.Headers != nil {
			if v, ok := item.Article.Headers.Get(header); ok {
				value = v
			}
		}
		lines = append(lines, fmt.Sprintf("%d %s", item.Number, value))
	}
	return e.replyMultiline(conn, sess, domain.CodeHeadFollows, "Header follows", lines)
}
