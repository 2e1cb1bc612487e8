package protocol

import (
	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

// ErrorKind is the domain-level error taxonomy of spec.md §7. Handlers
// classify a failure by kind rather than picking a response code
// directly, so the kind -> code mapping lives in one place instead of
// being repeated per call site (the teacher repeats this choice inline
// in every nntp-cmd-*.go handler).
type ErrorKind int

const (
	// KindProtocolFailure is a malformed command line or wrong arity.
	KindProtocolFailure ErrorKind = iota
	// KindCapabilityUnsupported is a recognized command with no backing
	// feature.
	KindCapabilityUnsupported
	// KindNoGroupSelected is an article-relative command issued before GROUP.
	KindNoGroupSelected
	// KindNoCurrentArticle is a command relying on the cursor with none set.
	KindNoNextArticle
	KindNoPrevArticle
	KindNoCurrentArticle
	// KindUnknownGroup is a lookup failure on a newsgroup name.
	KindUnknownGroup
	// KindUnknownArticleId is a lookup failure on a message-id.
	KindUnknownArticleId
	// KindUnknownArticleNumber is a lookup failure on a group-local number.
	KindUnknownArticleNumber
	// KindPolicyRejectedTransfer is an IHAVE the policy declines, already
	// held, or unwanted.
	KindPolicyRejectedTransfer
	// KindPolicyRejectedPost is a POST the policy declines.
	KindPolicyRejectedPost
	// KindValidationFailureTransfer is a malformed article rejected during
	// IHAVE ingestion.
	KindValidationFailureTransfer
	// KindValidationFailurePost is a malformed article rejected during POST.
	KindValidationFailurePost
)

// ResponseCode maps an ErrorKind to its RFC 3977 status code.
func (k ErrorKind) ResponseCode() domain.ResponseCode {
	switch k {
	case KindProtocolFailure:
		return domain.CodeCommandSyntaxError
	case KindCapabilityUnsupported:
		return domain.CodeFeatureNotSupported
	case KindNoGroupSelected:
		return domain.CodeNoGroupSelected
	case KindNoCurrentArticle:
		return domain.CodeNoCurrentArticle
	case KindNoNextArticle:
		return domain.CodeNoNextArticle
	case KindNoPrevArticle:
		return domain.CodeNoPrevArticle
	case KindUnknownGroup:
		return domain.CodeNoSuchGroup
	case KindUnknownArticleId:
		return domain.CodeNoSuchArticleId
	case KindUnknownArticleNumber:
		return domain.CodeNoSuchArticleNumber
	case KindPolicyRejectedTransfer:
		return domain.CodeTransferNotWanted
	case KindPolicyRejectedPost:
		return domain.CodePostingNotPermitted
	case KindValidationFailureTransfer:
		return domain.CodeTransferRejected
	case KindValidationFailurePost:
		return domain.CodePostingFailed
	}
	return domain.CodeSyntaxError
}

// failKind sends the response code for kind with text.
func (e *Engine) failKind(conn Conn, sess *session.Session, kind ErrorKind, text string) error {
	return e.reply(conn, sess, kind.ResponseCode(), text)
}
