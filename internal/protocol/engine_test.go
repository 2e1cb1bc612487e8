package protocol

import (
	"context"
	"strings"
	"testing"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/session"
)

func newTestEngine(p *fakePersistence) *Engine {
	return &Engine{
		Persistence:    p,
		Identity:       fakeIdentity{},
		Policy:         fakePolicy{},
		Hostname:       "test.invalid",
		PostingAllowed: true,
	}
}

func TestHandleGroupSelectsKnownGroup(t *testing.T) {
	p := newFakePersistence()
	p.addTestGroup("comp.lang.go", 1, 10, domain.PostingAllowed)
	e := newTestEngine(p)
	sess := session.New()
	conn := &fakeConn{}

	if err := e.handleGroup(context.Background(), conn, sess, []string{"comp.lang.go"}); err != nil {
		t.Fatalf("handleGroup: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "211 ") {
		t.Fatalf("status = %q, want 211 prefix", conn.lastStatus())
	}
	g, ok := sess.CurrentGroup()
	if !ok || g.String() != "comp.lang.go" {
		t.Fatalf("session group = %v, %v", g, ok)
	}
}

func TestHandleGroupUnknownReturns411(t *testing.T) {
	p := newFakePersistence()
	e := newTestEngine(p)
	sess := session.New()
	conn := &fakeConn{}

	if err := e.handleGroup(context.Background(), conn, sess, []string{"no.such.group"}); err != nil {
		t.Fatalf("handleGroup: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "411 ") {
		t.Fatalf("status = %q, want 411 prefix", conn.lastStatus())
	}
}

func TestHandleDateFormat(t *testing.T) {
	e := newTestEngine(newFakePersistence())
	sess := session.New()
	conn := &fakeConn{}
	if err := e.handleDate(conn, sess, nil); err != nil {
		t.Fatalf("handleDate: %v", err)
	}
	status := conn.lastStatus()
	if !strings.HasPrefix(status, "111 ") {
		t.Fatalf("status = %q, want 111 prefix", status)
	}
	if len(status) != len("111 ")+14 {
		t.Fatalf("status = %q, want 14-digit timestamp", status)
	}
}

func TestPostAndRetrieveArticle(t *testing.T) {
	p := newFakePersistence()
	p.addTestGroup("misc.test", 0, 0, domain.PostingAllowed)
	e := newTestEngine(p)
	sess := session.New()

	body := []string{
		"Subject: hello",
		"From: alice@example.com",
		"Newsgroups: misc.test",
		"Message-ID: <1@test.invalid>",
		"Date: Mon, 1 Jan 2024 00:00:00 +0000",
		"",
		"body line one",
		"body line two",
	}
	conn := &fakeConn{dotBody: [][]string{body}}
	if err := e.handlePost(context.Background(), conn, sess, nil); err != nil {
		t.Fatalf("handlePost: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "240 ") {
		t.Fatalf("post status = %q, want 240 prefix", conn.lastStatus())
	}

	if err := e.handleGroup(context.Background(), conn, sess, []string{"misc.test"}); err != nil {
		t.Fatalf("handleGroup: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "211 ") {
		t.Fatalf("group status = %q", conn.lastStatus())
	}

	conn2 := &fakeConn{}
	if err := e.handleRetrieve(context.Background(), conn2, sess, []string{"<1@test.invalid>"}, retrievalArticle); err != nil {
		t.Fatalf("handleRetrieve: %v", err)
	}
	if !strings.HasPrefix(conn2.lastStatus(), "220 ") {
		t.Fatalf("retrieve status = %q, want 220 prefix", conn2.lastStatus())
	}
	joined := strings.Join(conn2.out, "\n")
	if !strings.Contains(joined, "body line one") {
		t.Fatalf("article body missing from output: %v", conn2.out)
	}
}

func TestLastNextAtBounds(t *testing.T) {
	p := newFakePersistence()
	p.addTestGroup("bounds.test", 0, 0, domain.PostingAllowed)
	e := newTestEngine(p)
	sess := session.New()

	for i := 1; i <= 3; i++ {
		mid := "<" + string(rune('0'+i)) + "@test.invalid>"
		lines := []string{
			"Subject: s", "From: f@test.invalid", "Newsgroups: bounds.test",
			"Message-ID: " + mid, "Date: Mon, 1 Jan 2024 00:00:00 +0000", "", "body",
		}
		conn := &fakeConn{dotBody: [][]string{lines}}
		if err := e.handlePost(context.Background(), conn, sess, nil); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}

	conn := &fakeConn{}
	if err := e.handleGroup(context.Background(), conn, sess, []string{"bounds.test"}); err != nil {
		t.Fatalf("handleGroup: %v", err)
	}

	// cursor sits at the lowest article (1); LAST must fail with 422.
	lastConn := &fakeConn{}
	if err := e.handleLast(context.Background(), lastConn, sess); err != nil {
		t.Fatalf("handleLast: %v", err)
	}
	if !strings.HasPrefix(lastConn.lastStatus(), "422 ") {
		t.Fatalf("LAST at floor = %q, want 422 prefix", lastConn.lastStatus())
	}

	// NEXT from 1 should succeed, landing on 2.
	nextConn := &fakeConn{}
	if err := e.handleNext(context.Background(), nextConn, sess); err != nil {
		t.Fatalf("handleNext: %v", err)
	}
	if !strings.HasPrefix(nextConn.lastStatus(), "223 ") {
		t.Fatalf("NEXT = %q, want 223 prefix", nextConn.lastStatus())
	}

	// One more NEXT reaches the ceiling (3); the NEXT after it must fail with 421.
	if err := e.handleNext(context.Background(), &fakeConn{}, sess); err != nil {
		t.Fatalf("handleNext: %v", err)
	}
	ceilingConn := &fakeConn{}
	if err := e.handleNext(context.Background(), ceilingConn, sess); err != nil {
		t.Fatalf("handleNext: %v", err)
	}
	if !strings.HasPrefix(ceilingConn.lastStatus(), "421 ") {
		t.Fatalf("NEXT past ceiling = %q, want 421 prefix", ceilingConn.lastStatus())
	}
}

func TestIHaveDuplicateRejected(t *testing.T) {
	p := newFakePersistence()
	p.addTestGroup("dup.test", 0, 0, domain.PostingAllowed)
	e := newTestEngine(p)
	sess := session.New()

	lines := []string{
		"Subject: s", "From: f@test.invalid", "Newsgroups: dup.test",
		"Message-ID: <dup@test.invalid>", "Date: Mon, 1 Jan 2024 00:00:00 +0000", "", "body",
	}
	conn := &fakeConn{dotBody: [][]string{lines}}
	if err := e.handleIHave(context.Background(), conn, sess, []string{"<dup@test.invalid>"}); err != nil {
		t.Fatalf("first IHAVE: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "235 ") {
		t.Fatalf("first IHAVE status = %q, want 235 prefix", conn.lastStatus())
	}

	conn2 := &fakeConn{}
	if err := e.handleIHave(context.Background(), conn2, sess, []string{"<dup@test.invalid>"}); err != nil {
		t.Fatalf("second IHAVE: %v", err)
	}
	if !strings.HasPrefix(conn2.lastStatus(), "435 ") {
		t.Fatalf("duplicate IHAVE status = %q, want 435 prefix", conn2.lastStatus())
	}
}

func TestIHaveMessageIDMismatchRejected(t *testing.T) {
	p := newFakePersistence()
	p.addTestGroup("mismatch.test", 0, 0, domain.PostingAllowed)
	e := newTestEngine(p)
	sess := session.New()

	lines := []string{
		"Subject: s", "From: f@test.invalid", "Newsgroups: mismatch.test",
		"Message-ID: <other@test.invalid>", "Date: Mon, 1 Jan 2024 00:00:00 +0000", "", "body",
	}
	conn := &fakeConn{dotBody: [][]string{lines}}
	if err := e.handleIHave(context.Background(), conn, sess, []string{"<offered@test.invalid>"}); err != nil {
		t.Fatalf("IHAVE: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "437 ") {
		t.Fatalf("mismatched Message-ID status = %q, want 437 prefix", conn.lastStatus())
	}
	offeredID, err := domain.NewMessageId("<offered@test.invalid>")
	if err != nil {
		t.Fatalf("NewMessageId: %v", err)
	}
	payloadID, err := domain.NewMessageId("<other@test.invalid>")
	if err != nil {
		t.Fatalf("NewMessageId: %v", err)
	}
	if a, err := p.GetArticle(context.Background(), offeredID); err != nil || !a.Rejected || a.Headers != nil {
		t.Fatalf("offered message-id must only be marked rejected after mismatch, got %+v, %v", a, err)
	}
	if has, _ := p.HasArticle(context.Background(), payloadID); has {
		t.Fatalf("payload message-id must not be stored after mismatch")
	}

	// Replaying the same offer must still be rejected, since it was marked
	// rejected rather than silently dropped.
	conn2 := &fakeConn{}
	if err := e.handleIHave(context.Background(), conn2, sess, []string{"<offered@test.invalid>"}); err != nil {
		t.Fatalf("second IHAVE: %v", err)
	}
	if !strings.HasPrefix(conn2.lastStatus(), "435 ") {
		t.Fatalf("replayed rejected offer status = %q, want 435 prefix", conn2.lastStatus())
	}
}

func TestQuitTerminatesSession(t *testing.T) {
	e := newTestEngine(newFakePersistence())
	sess := session.New()
	conn := &fakeConn{}
	err := e.handleQuit(conn, sess)
	if err != errTerminate {
		t.Fatalf("handleQuit error = %v, want errTerminate", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "205 ") {
		t.Fatalf("QUIT status = %q, want 205 prefix", conn.lastStatus())
	}
}

func TestAuthInfoUserThenPass(t *testing.T) {
	e := newTestEngine(newFakePersistence())
	sess := session.New()
	conn := &fakeConn{}
	if err := e.handleAuthInfo(context.Background(), conn, sess, []string{"USER", "alice"}); err != nil {
		t.Fatalf("AUTHINFO USER: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "381 ") {
		t.Fatalf("AUTHINFO USER status = %q, want 381 prefix", conn.lastStatus())
	}
	if err := e.handleAuthInfo(context.Background(), conn, sess, []string{"PASS", "correct-horse"}); err != nil {
		t.Fatalf("AUTHINFO PASS: %v", err)
	}
	if !strings.HasPrefix(conn.lastStatus(), "281 ") {
		t.Fatalf("AUTHINFO PASS status = %q, want 281 prefix", conn.lastStatus())
	}
	if !sess.Authenticated {
		t.Fatal("session not marked authenticated")
	}
}
