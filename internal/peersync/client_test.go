package peersync

import (
	"context"
	"testing"
	"time"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/wire"
)

func mustGroup(t *testing.T, raw string) domain.NewsgroupName {
	t.Helper()
	n, err := domain.NewNewsgroupName(raw)
	if err != nil {
		t.Fatalf("NewNewsgroupName(%q): %v", raw, err)
	}
	return n
}

func mustMid(t *testing.T, raw string) domain.MessageId {
	t.Helper()
	id, err := domain.NewMessageId(raw)
	if err != nil {
		t.Fatalf("NewMessageId(%q): %v", raw, err)
	}
	return id
}

func TestDialNegotiatesGreetingAndCapabilities(t *testing.T) {
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, []string{"VERSION 2", "READER", "NEWNEWS", "IHAVE"})
	}}

	client, err := Dial(context.Background(), transport, domain.Peer{Address: "peer.example.com"}, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if !client.Has(domain.CapabilityReader) || !client.Has(domain.CapabilityNewNews) || !client.Has(domain.CapabilityIHave) {
		t.Fatalf("capabilities not negotiated: %+v", client.capabilities)
	}
	if client.Has(domain.CapabilityList) {
		t.Fatal("unexpectedly has LIST capability")
	}
}

func TestDialRejectsBadGreeting(t *testing.T) {
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		conn.WriteStatusLine(502, "no thanks")
	}}
	if _, err := Dial(context.Background(), transport, domain.Peer{Address: "x"}, time.Second); err == nil {
		t.Fatal("expected Dial to fail on bad greeting")
	}
}

func TestDateParsesResponse(t *testing.T) {
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, nil)
		line, _ := conn.ReadLine()
		if line != "DATE" {
			t.Errorf("expected DATE, got %q", line)
		}
		conn.WriteStatusLine(111, "20240102030405")
	}}
	client, err := Dial(context.Background(), transport, domain.Peer{Address: "x"}, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	got, err := client.Date()
	if err != nil {
		t.Fatalf("Date: %v", err)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date = %v, want %v", got, want)
	}
}

func TestNewGroupsParsesLines(t *testing.T) {
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, nil)
		conn.ReadLine()
		conn.WriteStatusLine(231, "New newsgroups follow")
		conn.WriteDotBody([]string{"comp.lang.go 20 1 y", "comp.lang.rust 5 1 m", "malformed"})
	}}
	client, err := Dial(context.Background(), transport, domain.Peer{Address: "x"}, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ads, err := client.NewGroups(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("NewGroups: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("NewGroups returned %d ads, want 2: %+v", len(ads), ads)
	}
	if ads[0].Name.String() != "comp.lang.go" || ads[0].Mode != domain.PostingAllowed {
		t.Errorf("ads[0] = %+v", ads[0])
	}
	if ads[1].Mode != domain.PostingModerated {
		t.Errorf("ads[1] mode = %v, want moderated", ads[1].Mode)
	}
}

func TestFetchArticlesPipelinesRequests(t *testing.T) {
	mid1 := "<1@test.invalid>"
	mid2 := "<2@test.invalid>"
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, nil)
		for i := 0; i < 2; i++ {
			line, err := conn.ReadLine()
			if err != nil {
				t.Fatalf("reading pipelined ARTICLE %d: %v", i, err)
			}
			if line != "ARTICLE "+mid1 && line != "ARTICLE "+mid2 {
				t.Fatalf("unexpected pipelined command: %q", line)
			}
		}
		conn.WriteStatusLine(220, "0 "+mid1)
		conn.WriteDotBody([]string{"Subject: hello", "Message-ID: " + mid1, "", "body one"})
		conn.WriteStatusLine(430, "no such article")
	}}
	client, err := Dial(context.Background(), transport, domain.Peer{Address: "x"}, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	results, err := client.FetchArticles([]domain.MessageId{mustMid(t, mid1), mustMid(t, mid2)})
	if err != nil {
		t.Fatalf("FetchArticles: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Code != 220 || results[0].Proto == nil {
		t.Errorf("results[0] = %+v", results[0])
	}
	if subj, _ := results[0].Proto.Headers().Get("Subject"); subj != "hello" {
		t.Errorf("parsed subject = %q, want hello", subj)
	}
	if results[1].Code != 430 {
		t.Errorf("results[1].Code = %d, want 430", results[1].Code)
	}
}

func TestIHaveAcceptedFlow(t *testing.T) {
	mid := mustMid(t, "<ihave@test.invalid>")
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, nil)
		line, _ := conn.ReadLine()
		if line != "IHAVE "+mid.String() {
			t.Fatalf("unexpected IHAVE line: %q", line)
		}
		conn.WriteStatusLine(335, "send it")
		if _, err := conn.ReadDotBody(); err != nil {
			t.Fatalf("reading article body: %v", err)
		}
		conn.WriteStatusLine(235, "transferred")
	}}
	client, err := Dial(context.Background(), transport, domain.Peer{Address: "x"}, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	headers := domain.NewArticleHeaders()
	headers.Set("Subject", "test")
	article := domain.Article{MessageID: mid, Headers: headers, Body: "hello"}
	code, err := client.IHave(mid, article)
	if err != nil {
		t.Fatalf("IHave: %v", err)
	}
	if code != 235 {
		t.Errorf("IHave code = %d, want 235", code)
	}
}

func TestIHaveDeclinedUpfront(t *testing.T) {
	mid := mustMid(t, "<declined@test.invalid>")
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, nil)
		conn.ReadLine()
		conn.WriteStatusLine(435, "not wanted")
	}}
	client, err := Dial(context.Background(), transport, domain.Peer{Address: "x"}, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	code, err := client.IHave(mid, domain.Article{MessageID: mid, Headers: domain.NewArticleHeaders()})
	if err != nil {
		t.Fatalf("IHave: %v", err)
	}
	if code != 435 {
		t.Errorf("IHave code = %d, want 435", code)
	}
}
