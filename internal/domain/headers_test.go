package domain

import "testing"

func validArticleHeaders() *ArticleHeaders {
	h := NewArticleHeaders()
	h.Set("Message-ID", "<a@h>")
	h.Set("Subject", "hello")
	h.Set("From", "a@h")
	h.Set("Date", "Mon, 2 Jan 2006 15:04:05 -0700")
	h.Set("Newsgroups", "test.nntp")
	h.Set("Path", "host1!host2")
	h.Set("References", "<b@h> <c@h>")
	h.Set("Lines", "3")
	h.Set("Bytes", "42")
	return h
}

func TestValidateAllSucceedsForValidHeaders(t *testing.T) {
	h := validArticleHeaders()
	got, err := h.ValidateAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != h {
		t.Errorf("ValidateAll should return the same headers unchanged")
	}
}

func TestValidateAllRejectsBadMessageId(t *testing.T) {
	h := validArticleHeaders()
	h.Set("Message-ID", "not-a-message-id")
	if _, err := h.ValidateAll(); err == nil {
		t.Errorf("expected error for malformed Message-ID")
	}
}

func TestValidateAllRejectsBadDate(t *testing.T) {
	h := validArticleHeaders()
	h.Set("Date", "not a date")
	if _, err := h.ValidateAll(); err == nil {
		t.Errorf("expected error for malformed Date")
	}
}

func TestValidateAllRejectsBadPath(t *testing.T) {
	h := validArticleHeaders()
	h.Set("Path", "host1!!host2")
	if _, err := h.ValidateAll(); err == nil {
		t.Errorf("expected error for malformed Path")
	}
}

func TestValidateAllRejectsBadLines(t *testing.T) {
	h := validArticleHeaders()
	h.Set("Lines", "not-a-number")
	if _, err := h.ValidateAll(); err == nil {
		t.Errorf("expected error for non-numeric Lines")
	}
}

func TestArticleHeadersLookupCaseInsensitive(t *testing.T) {
	h := NewArticleHeaders()
	h.Set("Subject", "hello world")
	got, ok := h.Get("SUBJECT")
	if !ok || got != "hello world" {
		t.Errorf("Get(SUBJECT) = %q, %v; want %q, true", got, ok, "hello world")
	}
}

func TestParseArticleDateLayouts(t *testing.T) {
	cases := []string{
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 06 15:04:05 -0700",
		"2 Jan 2006 15:04:05 GMT",
	}
	for _, c := range cases {
		if _, err := ParseArticleDate(c); err != nil {
			t.Errorf("ParseArticleDate(%q) failed: %v", c, err)
		}
	}
}

func TestValidatePathField(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"a!b!c", false},
		{"a.b!c-d_e", false},
		{"", true},
		{"a!!b", true},
		{"a!.b", true},
		{"a!b.", true},
	}
	for _, c := range cases {
		err := validatePathField([]string{c.in})
		if c.wantErr && err == nil {
			t.Errorf("validatePathField(%q): expected error", c.in)
		}
		if !c.wantErr && err != nil {
			t.Errorf("validatePathField(%q): unexpected error: %v", c.in, err)
		}
	}
}
