// Package domain defines the strongly-typed value objects shared by the
// protocol engine and the peer synchronizer: newsgroup names, message-ids,
// article numbers, posting modes, response codes, and article headers.
package domain

import (
	"fmt"
	"strings"
)

// NewsgroupName is a validated, lowercase-normalized newsgroup name.
type NewsgroupName struct {
	value string
}

// InvalidNewsgroupName reports why a candidate newsgroup name was rejected.
type InvalidNewsgroupName struct {
	Input  string
	Reason string
}

func (e *InvalidNewsgroupName) Error() string {
	return fmt.Sprintf("invalid newsgroup name %q: %s", e.Input, e.Reason)
}

// NewNewsgroupName validates and normalizes a raw newsgroup name.
func NewNewsgroupName(raw string) (NewsgroupName, error) {
	if !IsValidNewsgroupName(raw) {
		return NewsgroupName{}, &InvalidNewsgroupName{Input: raw, Reason: "malformed newsgroup name"}
	}
	return NewsgroupName{value: strings.ToLower(raw)}, nil
}

// IsValidNewsgroupName reports whether raw is a well-formed newsgroup name,
// per spec: nonempty, dot-separated labels of [A-Za-z0-9+_-], no
// leading/trailing dot, no consecutive dots.
func IsValidNewsgroupName(raw string) bool {
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, ".") || strings.HasSuffix(raw, ".") {
		return false
	}
	labels := strings.Split(raw, ".")
	for _, label := range labels {
		if label == "" {
			return false
		}
		for _, r := range label {
			if !isNewsgroupLabelByte(r) {
				return false
			}
		}
	}
	return true
}

func isNewsgroupLabelByte(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '+' || r == '_' || r == '-':
		return true
	}
	return false
}

// String returns the lowercase-normalized name.
func (n NewsgroupName) String() string { return n.value }

// IsLocalOnly reports whether the name's first label is "local", meaning
// the Peer Synchronizer must never advertise or sync this group.
func (n NewsgroupName) IsLocalOnly() bool {
	first, _, _ := strings.Cut(n.value, ".")
	return first == "local"
}

// Equal reports value equality (already normalized, so a plain compare).
func (n NewsgroupName) Equal(other NewsgroupName) bool { return n.value == other.value }
