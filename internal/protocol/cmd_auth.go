package protocol

import (
	"context"
	"strings"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// handleAuthInfo implements AUTHINFO USER/PASS, a supplemented feature
// (SPEC_FULL.md Supplemented Features) not present in spec.md's
// distillation but required for any real reader/peer to authenticate.
// Grounded on the two-step exchange in nntp-cmd-auth.go.
func (e *Engine) handleAuthInfo(ctx context.Context, conn Conn, sess *session.Session, args []string) error {
	if len(args) != 2 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "AUTHINFO requires a subcommand and a value")
	}
	if e.Identity == nil {
		return e.reply(conn, sess, domain.CodeCommandUnavailable, "Authentication not available")
	}

	switch strings.ToUpper(args[0]) {
	case "USER":
		sess.SetPendingAuthUser(args[1])
		return e.reply(conn, sess, domain.CodeAuthContinue, "Password required")
	case "PASS":
		username, ok := sess.PendingAuthUser()
		if !ok {
			return e.reply(conn, sess, domain.CodeCommandUnavailable, "AUTHINFO USER must precede AUTHINFO PASS")
		}
		token, authOK, err := e.Identity.Authenticate(ctx, username, args[1])
		if err != nil || !authOK {
			return e.reply(conn, sess, domain.CodeAuthRequired, "Authentication failed")
		}
		sess.CompleteAuth(username, token)
		return e.reply(conn, sess, domain.CodeAuthAccepted, "Authentication accepted")
	default:
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "Unknown AUTHINFO subcommand: "+args[0])
	}
}
