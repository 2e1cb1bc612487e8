package protocol

import (
	"strings"
	"time"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// handleCapabilities responds with the capability list. Grounded on
// handleCapabilities in nntp-cmd-basic.go.
func (e *Engine) handleCapabilities(conn Conn, sess *session.Session, args []string) error {
	if len(args) > 0 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "CAPABILITIES takes no arguments")
	}
	caps := []string{
		"VERSION 2",
		"READER",
		"LIST ACTIVE NEWSGROUPS",
		"OVER",
		"HDR",
	}
	if e.Policy != nil {
		caps = append(caps, "POST", "IHAVE")
	}
	return e.replyMultiline(conn, sess, domain.CodeCapabilitiesFollow, "Capability list:", caps)
}

// handleMode handles MODE READER. Grounded on handleMode in
// nntp-cmd-basic.go.
func (e *Engine) handleMode(conn Conn, sess *session.Session, args []string) error {
	if len(args) != 1 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "MODE requires exactly one argument")
	}
	switch strings.ToUpper(args[0]) {
	case "READER":
		if e.PostingAllowed {
			return e.reply(conn, sess, domain.CodePostingAllowed, "Posting allowed")
		}
		return e.reply(conn, sess, domain.CodeReadingOnly, "Posting prohibited")
	default:
		return e.reply(conn, sess, domain.CodeSyntaxError, "Unknown MODE: "+args[0])
	}
}

// handleQuit handles QUIT. Lenient on trailing args, per spec.md §4.4.
func (e *Engine) handleQuit(conn Conn, sess *session.Session) error {
	_ = e.reply(conn, sess, domain.CodeClosing, "Closing connection")
	return errTerminate
}

// handleDate answers with the server's UTC clock, yyyyMMddHHmmss.
func (e *Engine) handleDate(conn Conn, sess *session.Session, args []string) error {
	if len(args) > 0 {
		return e.reply(conn, sess, domain.CodeCommandSyntaxError, "DATE takes no arguments")
	}
	return e.reply(conn, sess, domain.CodeDate, time.Now().UTC().Format("20060102150405"))
}

// handleHelp handles HELP. Grounded on handleHelp in nntp-cmd-basic.go.
func (e *Engine) handleHelp(conn Conn, sess *session.Session, args []string) error {
	lines := []string{
		"Commands supported:",
		"  CAPABILITIES",
		"  MODE READER",
		"  DATE",
		"  GROUP <group>",
		"  LISTGROUP [<group> [<range>]]",
		"  LIST [ACTIVE|NEWSGROUPS]",
		"  NEWGROUPS <date> <time> [GMT]",
		"  NEWNEWS <group> <date> <time> [GMT]",
		"  ARTICLE|HEAD|BODY|STAT [<number>|<message-id>]",
		"  NEXT",
		"  LAST",
		"  XOVER [<range>]",
		"  XHDR <header> [<range>]",
		"  AUTHINFO USER|PASS <value>",
		"  POST",
		"  IHAVE <message-id>",
		"  QUIT",
		"",
		"See RFC 3977 and RFC 5536.",
	}
	return e.replyMultiline(conn, sess, domain.CodeHelpFollows, "Help text follows", lines)
}
