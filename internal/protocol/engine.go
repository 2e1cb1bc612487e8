// Package protocol implements the per-connection NNTP state machine:
// command dispatch, per-command state handling, error-code emission, and
// interplay with the Persistence/Identity/Policy capabilities. Grounded
// on internal/nntp/nntp-server-cliconns.go's ClientConnection.Handle and
// handleCommand in the teacher repository this module was adapted from.
package protocol

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
	"github.com/go-while/nntpd/internal/wire"
)

// Conn is the minimal wire surface a command handler needs. wire.Conn
// satisfies it; tests may substitute a fake.
type Conn interface {
	ReadLine() (string, error)
	WriteStatusLine(code int, text string) error
	WriteLine(line string) error
	WriteDotBody(lines []string) error
	ReadDotBody() ([]string, error)
}

// Engine drives one connection's command loop against the shared
// capability providers. An Engine holds no per-connection state, so one
// Engine can serve every accepted connection; each Run call is paired
// with a fresh session.Session.
type Engine struct {
	Persistence capability.PersistenceService
	Identity    capability.IdentityService
	Policy      capability.PolicyService

	Hostname       string
	PostingAllowed bool // server-wide default greeting mode (200 vs 201)

	// RateLimitOnError, when set, is invoked after an error-class
	// response (SPEC_FULL.md Supplemented Features: a small per-session
	// backoff blunting brute-force scans). Defaults to a no-op.
	RateLimitOnError func(streak int)
}

// errTerminate is returned by a handler to signal the command loop must
// stop (QUIT).
var errTerminate = fmt.Errorf("terminate session")

// Run drives the command loop for one connection until QUIT, transport
// EOF, or ctx cancellation. It sends the initial greeting first.
func (e *Engine) Run(ctx context.Context, conn Conn, sess *session.Session) error {
	if err := e.sendGreeting(conn); err != nil {
		return fmt.Errorf("sending greeting: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading command: %w", err)
		}
		sess.LastCommand = time.Now()

		cmd, ok := wire.ParseCommand(line)
		if !ok {
			e.reply(conn, sess, domain.CodeSyntaxError, "Empty command")
			continue
		}

		if err := e.dispatch(ctx, conn, sess, cmd); err != nil {
			if err == errTerminate {
				return nil
			}
			log.Printf("[protocol] command %s failed: %v", cmd.Verb, err)
			return err
		}
	}
}

func (e *Engine) sendGreeting(conn Conn) error {
	hostname := e.Hostname
	if hostname == "" {
		hostname = "nntpd"
	}
	if e.PostingAllowed {
		return conn.WriteStatusLine(int(domain.CodePostingAllowed), fmt.Sprintf("%s NNTP service ready, posting allowed", hostname))
	}
	return conn.WriteStatusLine(int(domain.CodeReadingOnly), fmt.Sprintf("%s NNTP service ready, posting prohibited", hostname))
}

// reply sends a single-line response and drives the rate-limit-on-error
// hook and the session's error streak for error-class codes.
func (e *Engine) reply(conn Conn, sess *session.Session, code domain.ResponseCode, text string) error {
	if isErrorClass(code) {
		streak := sess.NoteError()
		if e.RateLimitOnError != nil {
			e.RateLimitOnError(streak)
		}
	} else {
		sess.NoteSuccess()
	}
	return conn.WriteStatusLine(int(code), text)
}

func isErrorClass(code domain.ResponseCode) bool {
	switch code {
	case domain.CodeNoSuchGroup, domain.CodeNoGroupSelected, domain.CodeNoCurrentArticle,
		domain.CodeNoNextArticle, domain.CodeNoPrevArticle, domain.CodeNoSuchArticleNumber,
		domain.CodeNoSuchArticleId, domain.CodeCommandSyntaxError, domain.CodeSyntaxError:
		return true
	}
	return false
}

func (e *Engine) replyMultiline(conn Conn, sess *session.Session, code domain.ResponseCode, text string, lines []string) error {
	if err := e.reply(conn, sess, code, text); err != nil {
		return err
	}
	return conn.WriteDotBody(lines)
}
