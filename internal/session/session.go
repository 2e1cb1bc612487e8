// Package session holds the per-connection state the Protocol Engine
// drives. It is a direct reshaping of the teacher's ClientConnection
// struct (internal/nntp/nntp-server-cliconns.go) onto the capability-seam
// types instead of direct database/model coupling.
package session

import (
	"time"

	"github.com/go-while/nntpd/internal/domain"
)

// Session is the mutable per-connection state. Only the Protocol Engine
// and the command handlers it dispatches mutate it. It holds no
// transport streams; the connection is owned by the caller of the
// Engine.
type Session struct {
	RequestArgs []string

	currentGroup   *domain.NewsgroupName
	currentArticle domain.ArticleNumber
	groupLow       domain.ArticleNumber
	groupHigh      domain.ArticleNumber

	AuthenticationToken string
	Authenticated       bool
	AuthUsername        string
	pendingAuthUser     string

	NegotiatedCapabilities []string

	Created     time.Time
	LastCommand time.Time

	errorStreak int
}

// New returns a freshly bound session.
func New() *Session {
	now := time.Now()
	return &Session{Created: now, LastCommand: now}
}

// SelectGroup binds the session to group with the given bounds, and
// positions the cursor at the lowest article number (or leaves it unset
// if the group is empty), per spec.md §4.4's GROUP state transition.
func (s *Session) SelectGroup(name domain.NewsgroupName, r domain.GroupRange) {
	s.currentGroup = &name
	s.groupLow = r.Low
	s.groupHigh = r.High
	if r.Empty() {
		s.currentArticle = 0
		return
	}
	s.currentArticle = r.Low
}

// CurrentGroup returns the selected group, if any.
func (s *Session) CurrentGroup() (domain.NewsgroupName, bool) {
	if s.currentGroup == nil {
		return domain.NewsgroupName{}, false
	}
	return *s.currentGroup, true
}

// GroupBounds returns the selected group's low/high article numbers.
func (s *Session) GroupBounds() (low, high domain.ArticleNumber) {
	return s.groupLow, s.groupHigh
}

// CurrentArticle returns the cursor, valid only when a group is
// selected (spec.md §3 invariant).
func (s *Session) CurrentArticle() (domain.ArticleNumber, bool) {
	if s.currentGroup == nil || s.currentArticle == 0 {
		return 0, false
	}
	return s.currentArticle, true
}

// SetCurrentArticle moves the cursor within the selected group.
func (s *Session) SetCurrentArticle(n domain.ArticleNumber) {
	s.currentArticle = n
}

// ResetGroup clears group/article selection, used when a GROUP lookup fails
// after a prior successful selection would otherwise leave stale state.
func (s *Session) ResetGroup() {
	s.currentGroup = nil
	s.currentArticle = 0
	s.groupLow = 0
	s.groupHigh = 0
}

// NoteError increments the consecutive-error counter; the protocol
// engine consults this to apply the rate-limit-on-error behavior
// (SPEC_FULL.md Supplemented Features) after state-precondition or
// lookup failures.
func (s *Session) NoteError() int {
	s.errorStreak++
	return s.errorStreak
}

// NoteSuccess resets the consecutive-error counter.
func (s *Session) NoteSuccess() {
	s.errorStreak = 0
}

// SetPendingAuthUser records the username from AUTHINFO USER, awaiting
// the follow-up AUTHINFO PASS.
func (s *Session) SetPendingAuthUser(name string) {
	s.pendingAuthUser = name
}

// PendingAuthUser returns the username recorded by AUTHINFO USER, if
// any password exchange is outstanding.
func (s *Session) PendingAuthUser() (string, bool) {
	if s.pendingAuthUser == "" {
		return "", false
	}
	return s.pendingAuthUser, true
}

// CompleteAuth finalizes a successful AUTHINFO exchange.
func (s *Session) CompleteAuth(username, token string) {
	s.Authenticated = true
	s.AuthUsername = username
	s.AuthenticationToken = token
	s.pendingAuthUser = ""
}
