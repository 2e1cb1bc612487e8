package policy

import (
	"context"
	"testing"

	"github.com/go-while/nntpd/internal/domain"
)

func TestPolicyRejectsProhibitedGroup(t *testing.T) {
	p := New(DefaultConfig())
	name, _ := domain.NewNewsgroupName("comp.lang.go")
	id, _ := domain.NewMessageId("<1@test.invalid>")
	allowed, err := p.IsArticleAllowed(context.Background(), id, nil, "", name, domain.PostingProhibited, "alice")
	if err != nil {
		t.Fatalf("IsArticleAllowed: %v", err)
	}
	if allowed {
		t.Fatal("expected prohibited group to reject the article")
	}
}

func TestPolicyRejectsBinaryHierarchy(t *testing.T) {
	p := New(DefaultConfig())
	name, _ := domain.NewNewsgroupName("alt.binaries.pictures")
	id, _ := domain.NewMessageId("<2@test.invalid>")
	allowed, err := p.IsArticleAllowed(context.Background(), id, nil, "", name, domain.PostingAllowed, "alice")
	if err != nil {
		t.Fatalf("IsArticleAllowed: %v", err)
	}
	if allowed {
		t.Fatal("expected binary hierarchy to be rejected by default config")
	}
}

func TestPolicyAllowsOrdinaryGroup(t *testing.T) {
	p := New(DefaultConfig())
	name, _ := domain.NewNewsgroupName("comp.lang.go")
	id, _ := domain.NewMessageId("<3@test.invalid>")
	allowed, err := p.IsArticleAllowed(context.Background(), id, nil, "", name, domain.PostingAllowed, "alice")
	if err != nil {
		t.Fatalf("IsArticleAllowed: %v", err)
	}
	if !allowed {
		t.Fatal("expected ordinary group to be allowed")
	}
}

func TestPolicyRejectsLocalOnlyGroupAdvertisement(t *testing.T) {
	p := New(DefaultConfig())
	name, _ := domain.NewNewsgroupName("local.private")
	allowed, err := p.IsNewsgroupAllowed(context.Background(), name, domain.PostingAllowed, 0, "peer.example.com")
	if err != nil {
		t.Fatalf("IsNewsgroupAllowed: %v", err)
	}
	if allowed {
		t.Fatal("expected local-only group to never be advertised")
	}
}
