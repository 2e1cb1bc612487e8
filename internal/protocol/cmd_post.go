package protocol

import (
	"context"
	"strings"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// handlePost implements the POST transfer state machine: 340 continue,
// read a dot-terminated article, validate, run policy, store, and reply
// 240/441. Grounded on handlePost in nntp-cmd-posting.go.
func (e *Engine) handlePost(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) != 0 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "POST takes no arguments")
	}
	if e.Policy != nil {
		allowed, err := e.Policy.IsPostingAllowed(ctx, sess.AuthUsername)
		if err != nil || !allowed {
			return e.reply(conn, sess, domain.CodePostingNotPermitted, "Posting not permitted")
		}
	} else if !e.PostingAllowed {
		return e.reply(conn, sess, domain.CodePostingNotPermitted, "Posting not permitted")
	}

	if err := conn.WriteStatusLine(int(domain.CodeSendArticleToPost), "Send article to be posted"); err != nil {
		return err
	}

	lines, err := conn.ReadDotBody()
	if err != nil {
		return err
	}

	proto := domain.ParseProtoArticle(lines)
	headers := proto.Headers()

	mid, ok := headers.Get("Message-ID")
	if !ok {
		if e.Identity == nil {
			return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: no Message-ID and no identity service")
		}
		generated, err := e.Identity.CreateMessageID(ctx, headers)
		if err != nil {
			return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: could not synthesize Message-ID")
		}
		headers.Set("Message-ID", generated.String())
		mid = generated.String()
	}
	id, err := domain.NewMessageId(mid)
	if err != nil {
		return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: invalid Message-ID")
	}

	if _, err := headers.ValidateAll(); err != nil {
		return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: "+err.Error())
	}

	newsgroupsHeader, _ := headers.Get("Newsgroups")
	groups := parseNewsgroupsHeader(newsgroupsHeader)
	if len(groups) == 0 {
		return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: missing Newsgroups header")
	}

	article := domain.Article{MessageID: id, Headers: headers, Body: proto.Body()}

	accepted, err := e.storeAcrossGroups(ctx, sess, groups, article)
	if err != nil {
		return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: "+err.Error())
	}
	if !accepted {
		return e.reply(conn, sess, domain.CodePostingFailed, "Posting failed: no newsgroup accepted the article")
	}
	return e.reply(conn, sess, domain.CodePosted, "Article posted")
}

// handleIHave implements the IHAVE transfer state machine per spec.md
// §4.4: not pipelined, serial (spec.md §4.5 Phase 2 Push contract).
// Grounded on handleIHave in nntp-cmd-posting.go. Rejected/quarantined
// articles are stored with isAllowed=false rather than discarded, per
// the Open Question resolution on IHAVE rejection handling.
func (e *Engine) handleIHave(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) != 1 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "IHAVE requires a message-id argument")
	}
	id, err := domain.NewMessageId(args[0])
	if err != nil {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Invalid message-id")
	}

	if e.Policy != nil {
		allowed, err := e.Policy.IsIHaveTransferAllowed(ctx, sess.AuthUsername)
		if err != nil || !allowed {
			return e.reply(conn, sess, domain.CodeTransferNotWanted, "Transfer not wanted")
		}
	}

	if has, err := e.Persistence.HasArticle(ctx, id); err == nil && has {
		return e.reply(conn, sess, domain.CodeTransferNotWanted, "Already have this article")
	}

	if err := conn.WriteStatusLine(int(domain.CodeSendArticleToTransfer), "Send article to be transferred"); err != nil {
		return err
	}

	lines, err := conn.ReadDotBody()
	if err != nil {
		return err
	}

	proto := domain.ParseProtoArticle(lines)
	headers := proto.Headers()

	if parsedMid, ok := headers.Get("Message-ID"); ok {
		parsedID, err := domain.NewMessageId(parsedMid)
		if err != nil || !parsedID.Equal(id) {
			_ = e.Persistence.RejectArticle(ctx, id)
			return e.reply(conn, sess, domain.CodeTransferRejected, "Transfer rejected: Message-ID mismatch")
		}
	} else {
		headers.Set("Message-ID", id.String())
	}

	if _, err := headers.ValidateAll(); err != nil {
		_ = e.Persistence.RejectArticle(ctx, id)
		return e.reply(conn, sess, domain.CodeTransferRejected, "Transfer rejected: "+err.Error())
	}

	article := domain.Article{MessageID: id, Headers: headers, Body: proto.Body()}
	newsgroupsHeader, _ := headers.Get("Newsgroups")
	groups := parseNewsgroupsHeader(newsgroupsHeader)

	if len(groups) == 0 {
		_ = e.Persistence.RejectArticle(ctx, id)
		return e.reply(conn, sess, domain.CodeTransferRejected, "Transfer rejected: missing Newsgroups header")
	}

	accepted, err := e.storeAcrossGroups(ctx, sess, groups, article)
	if err != nil {
		_ = e.Persistence.RejectArticle(ctx, id)
		return e.reply(conn, sess, domain.CodeTransferRejected, "Transfer rejected: "+err.Error())
	}
	if !accepted {
		_ = e.Persistence.RejectArticle(ctx, id)
		return e.reply(conn, sess, domain.CodeTransferRejected, "Transfer rejected by policy")
	}
	return e.reply(conn, sess, domain.CodeTransferAccepted, "Article transferred")
}

// storeAcrossGroups links article into every accepting group, storing
// the canonical copy on the first successful link and reusing it via
// IncludeArticle for the remaining crossposted groups (spec.md §4.4
// crossposting note). Returns true if at least one group admitted it.
func (e *Engine) storeAcrossGroups(ctx context.Context, sess *session.Session, groups []domain.NewsgroupName, article domain.Article) (bool, error) {
	accepted := false
	stored := false
	for _, group := range groups {
		g, err := e.Persistence.GetGroupByName(ctx, group)
		if err != nil || g.Ignored {
			continue
		}
		allowed := true
		if e.Policy != nil {
			ok, err := e.Policy.IsArticleAllowed(ctx, article.MessageID, article.Headers, article.Body, group, g.PostingMode, sess.AuthUsername)
			allowed = err == nil && ok
		}

		var linkErr error
		if !stored {
			_, linkErr = e.Persistence.AddArticle(ctx, group, article, allowed)
		} else {
			_, linkErr = e.Persistence.IncludeArticle(ctx, group, article, allowed)
		}
		if linkErr == nil {
			stored = true
			accepted = accepted || allowed
		}
	}
	return accepted, nil
}

func parseNewsgroupsHeader(raw string) []domain.NewsgroupName {
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
