package protocol

import (
	"context"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
	"github.com/go-while/nntpd/internal/wire"
)

// dispatch routes one tokenized command to its handler. Grounded on
// handleCommand in nntp-server-cliconns.go: a total switch over the
// verb, never dynamic dispatch (spec.md §9 design note).
func (e *Engine) dispatch(ctx context.Context, conn Conn, sess *session.Session, cmd wire.Command) error {
	switch cmd.Verb {
	case "CAPABILITIES":
		return e.handleCapabilities(conn, sess, cmd.Args)
	case "MODE":
		return e.handleMode(conn, sess, cmd.Args)
	case "QUIT":
		return e.handleQuit(conn, sess)
	case "DATE":
		return e.handleDate(conn, sess, cmd.Args)
	case "HELP":
		return e.handleHelp(conn, sess, cmd.Args)
	case "GROUP":
		return e.handleGroup(ctx, conn, sess, cmd.Args)
	case "LISTGROUP":
		return e.handleListGroup(ctx, conn, sess, cmd.Args)
	case "LIST":
		return e.handleList(ctx, conn, sess, cmd.Args)
	case "NEWGROUPS":
		return e.handleNewGroups(ctx, conn, sess, cmd.Args)
	case "NEWNEWS":
		return e.handleNewNews(ctx, conn, sess, cmd.Args)
	case "ARTICLE":
		return e.handleRetrieve(ctx, conn, sess, cmd.Args, retrievalArticle)
	case "HEAD":
		return e.handleRetrieve(ctx, conn, sess, cmd.Args, retrievalHead)
	case "BODY":
		return e.handleRetrieve(ctx, conn, sess, cmd.Args, retrievalBody)
	case "STAT":
		return e.handleRetrieve(ctx, conn, sess, cmd.Args, retrievalStat)
	case "NEXT":
		return e.handleNext(ctx, conn, sess)
	case "LAST":
		return e.handleLast(ctx, conn, sess)
	case "XOVER":
		return e.handleXOver(ctx, conn, sess, cmd.Args)
	case "XHDR":
		return e.handleXHdr(ctx, conn, sess, cmd.Args)
	case "AUTHINFO":
		return e.handleAuthInfo(ctx, conn, sess, cmd.Args)
	case "POST":
		return e.handlePost(ctx, conn, sess, cmd.Args)
	case "IHAVE":
		return e.handleIHave(ctx, conn, sess, cmd.Args)
	case "CHECK", "TAKETHIS":
		// Streaming extensions are an explicit Non-goal (spec.md §1,
		// SPEC_FULL.md Open Question resolution #4): recognized, not
		// implemented.
		return e.reply(conn, sess, domain.CodeFeatureNotSupported, cmd.Verb+" not supported")
	default:
		return e.reply(conn, sess, domain.CodeSyntaxError, "Command not recognized: "+cmd.Verb)
	}
}
