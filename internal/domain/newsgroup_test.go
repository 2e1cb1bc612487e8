package domain

import "testing"

func TestNewNewsgroupName(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
		want    string
	}{
		{"comp.lang.go", false, "comp.lang.go"},
		{"Comp.Lang.Go", false, "comp.lang.go"},
		{"alt.binaries.test_1", false, "alt.binaries.test_1"},
		{"", true, ""},
		{".leading", true, ""},
		{"trailing.", true, ""},
		{"double..dot", true, ""},
		{"bad space", true, ""},
	}
	for _, c := range cases {
		got, err := NewNewsgroupName(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NewNewsgroupName(%q): expected error, got none", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewNewsgroupName(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got.String() != c.want {
			t.Errorf("NewNewsgroupName(%q) = %q, want %q", c.in, got.String(), c.want)
		}
	}
}

func TestNewsgroupNameIsLocalOnly(t *testing.T) {
	local, err := NewNewsgroupName("local.admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !local.IsLocalOnly() {
		t.Errorf("expected local.admin to be local-only")
	}
	other, err := NewNewsgroupName("comp.lang.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.IsLocalOnly() {
		t.Errorf("expected comp.lang.go not to be local-only")
	}
}
