package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StandardHeaders lists the header names a locally-stored article must
// carry, in canonical casing.
var StandardHeaders = []string{
	"Message-ID", "Subject", "From", "Date", "Newsgroups",
	"Path", "References", "Lines", "Bytes",
}

// ArticleHeaders maps a canonical header name to its set of values.
// Lookup is case-insensitive; storage preserves the canonical form the
// header was first seen or set under.
type ArticleHeaders struct {
	values map[string][]string
	names  map[string]string // lowercase -> canonical
}

// NewArticleHeaders returns an empty header set.
func NewArticleHeaders() *ArticleHeaders {
	return &ArticleHeaders{
		values: make(map[string][]string),
		names:  make(map[string]string),
	}
}

// Set replaces all values for name (canonicalized to the first-seen form
// for that lowercase key, or name itself if unseen).
func (h *ArticleHeaders) Set(name string, values ...string) {
	key := strings.ToLower(name)
	canonical, ok := h.names[key]
	if !ok {
		canonical = name
		h.names[key] = canonical
	}
	h.values[canonical] = append([]string(nil), values...)
}

// Add appends a value under name.
func (h *ArticleHeaders) Add(name, value string) {
	key := strings.ToLower(name)
	canonical, ok := h.names[key]
	if !ok {
		canonical = name
		h.names[key] = canonical
	}
	h.values[canonical] = append(h.values[canonical], value)
}

// Get returns the first value stored under name, case-insensitive.
func (h *ArticleHeaders) Get(name string) (string, bool) {
	vals, ok := h.Values(name)
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns every value stored under name, case-insensitive.
func (h *ArticleHeaders) Values(name string) ([]string, bool) {
	canonical, ok := h.names[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	vals, ok := h.values[canonical]
	return vals, ok
}

// Names returns the canonical names present, in no particular order.
func (h *ArticleHeaders) Names() []string {
	out := make([]string, 0, len(h.values))
	for name := range h.values {
		out = append(out, name)
	}
	return out
}

// FieldValidator validates all values stored under one header field.
type FieldValidator func(values []string) error

// fieldValidators is keyed by canonical, case-folded header name.
var fieldValidators = map[string]FieldValidator{
	"message-id": validateMessageIdField,
	"references": validateReferencesField,
	"date":       validateDateField,
	"path":       validatePathField,
	"lines":      validateDecimalField,
	"bytes":      validateDecimalField,
}

// InvalidArticleHeader reports a per-field validation failure.
type InvalidArticleHeader struct {
	Name   string
	Reason string
}

func (e *InvalidArticleHeader) Error() string {
	return fmt.Sprintf("invalid header %q: %s", e.Name, e.Reason)
}

// ValidateAll validates every field of h that has a registered validator,
// leaving fields without one untouched (per spec: "unknown headers are
// retained unchanged"). Returns h unchanged on success.
func (h *ArticleHeaders) ValidateAll() (*ArticleHeaders, error) {
	for lower, canonical := range h.names {
		validate, ok := fieldValidators[lower]
		if !ok {
			continue
		}
		if err := validate(h.values[canonical]); err != nil {
			return nil, &InvalidArticleHeader{Name: canonical, Reason: err.Error()}
		}
	}
	return h, nil
}

func validateMessageIdField(values []string) error {
	for _, v := range values {
		if !IsValidMessageId(strings.TrimSpace(v)) {
			return fmt.Errorf("not a valid message-id: %q", v)
		}
	}
	return nil
}

func validateReferencesField(values []string) error {
	for _, v := range values {
		for _, ref := range strings.Fields(v) {
			if !IsValidMessageId(ref) {
				return fmt.Errorf("not a valid message-id reference: %q", ref)
			}
		}
	}
	return nil
}

func validateDecimalField(values []string) error {
	for _, v := range values {
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("not a decimal integer: %q", v)
		}
	}
	return nil
}

// dateLayouts enumerates the RFC 5322 / RFC 3977 date permutations this
// server accepts: optional day-of-week (with or without comma; a missing
// comma is inserted by ParseArticleDate before matching), 2- or 4-digit
// year, optional seconds, and a numeric, named, or "Z" zone. Not every
// combination is listed: seconds may be omitted only with a 4-digit year
// and a numeric zone, "Z" is matched only with a day-of-week, seconds
// and a 4-digit year, and a zone is always required.
var dateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 Z0700",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"2 Jan 06 15:04:05 -0700",
	"2 Jan 06 15:04:05 MST",
}

// ParseArticleDate parses a Date: header value against every supported
// layout, returning the first match.
func ParseArticleDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > 4 && trimmed[3] == ' ' {
		if _, err := time.Parse("Mon", trimmed[:3]); err == nil {
			trimmed = trimmed[:3] + "," + trimmed[3:]
		}
	}
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q: %w", raw, lastErr)
}

func validateDateField(values []string) error {
	for _, v := range values {
		if _, err := ParseArticleDate(v); err != nil {
			return err
		}
	}
	return nil
}

// validatePathField checks the '!'-separated host-path grammar: each
// component is dot-separated labels of [A-Za-z0-9_-], no empty
// components, no leading/trailing/consecutive dots within a component.
// Whitespace around the whole value is trimmed before validation.
func validatePathField(values []string) error {
	for _, v := range values {
		if err := validatePathValue(v); err != nil {
			return err
		}
	}
	return nil
}

func validatePathValue(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("empty Path value")
	}
	components := strings.Split(trimmed, "!")
	for _, comp := range components {
		if comp == "" {
			return fmt.Errorf("empty Path component in %q", raw)
		}
		if strings.HasPrefix(comp, ".") || strings.HasSuffix(comp, ".") || strings.Contains(comp, "..") {
			return fmt.Errorf("malformed dot placement in Path component %q", comp)
		}
		for _, label := range strings.Split(comp, ".") {
			if label == "" {
				return fmt.Errorf("empty label in Path component %q", comp)
			}
			for _, r := range label {
				if !isPathLabelByte(r) {
					return fmt.Errorf("invalid byte %q in Path component %q", r, comp)
				}
			}
		}
	}
	return nil
}

func isPathLabelByte(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}
