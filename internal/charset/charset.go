// Package charset normalizes article header values and body text to
// UTF-8 for display and comparison: RFC 2047 encoded-words, legacy
// single-byte charsets, and raw bytes that never went through MIME at
// all. Grounded on ConvertToUTF8 in internal/models/sanitizing.go, but
// the encoded-word path drives mime.WordDecoder's CharsetReader hook
// instead of reparsing "=?charset?enc?text?=" tokens by hand.
package charset

import (
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ToUTF8 decodes RFC 2047 encoded-words, routing any charset
// mime.WordDecoder doesn't recognize through DecodeBytes via
// unsupportedCharsetReader, then converts whatever remains from
// Latin-1 to UTF-8 if it isn't already valid. Unlike the teacher's
// ConvertToUTF8 this does not unescape HTML entities: article text is
// wire data, not pre-rendered HTML.
func ToUTF8(text string) string {
	decoder := mime.WordDecoder{CharsetReader: unsupportedCharsetReader}
	decoded, err := decoder.DecodeHeader(text)
	if err != nil {
		decoded = text
	}

	if utf8.ValidString(decoded) {
		return decoded
	}

	latin1 := charmap.ISO8859_1.NewDecoder()
	result, _, err := transform.String(latin1, decoded)
	if err != nil {
		return strings.ToValidUTF8(decoded, "�")
	}
	return result
}

// DecodeQuotedPrintable decodes a quoted-printable body, returning the
// input unchanged if it fails to decode.
func DecodeQuotedPrintable(text string) string {
	reader := quotedprintable.NewReader(strings.NewReader(text))
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return text
	}
	return string(decoded)
}

// unsupportedCharsetReader backs mime.WordDecoder.CharsetReader: it is
// invoked once per encoded-word whose declared charset isn't one of
// the handful mime.WordDecoder already understands, handing the
// raw bytes to DecodeBytes/htmlindex instead of leaving them undecoded.
func unsupportedCharsetReader(name string, input io.Reader) (io.Reader, error) {
	raw, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeBytes(raw, name)
	if err != nil {
		// Fall back to Latin-1 rather than fail the whole header decode.
		if latin1, _, fallbackErr := transform.String(charmap.ISO8859_1.NewDecoder(), string(raw)); fallbackErr == nil {
			return strings.NewReader(latin1), nil
		}
		return strings.NewReader(strings.ToValidUTF8(string(raw), "�")), nil
	}
	return strings.NewReader(decoded), nil
}

// DecodeBytes converts data from the named charset to a UTF-8 string,
// resolving aliases through NormalizeName and unknown names through
// htmlindex.
func DecodeBytes(data []byte, name string) (string, error) {
	name = NormalizeName(name)
	if name == "utf-8" {
		return string(data), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unsupported charset: %s", name)
	}
	if enc == nil {
		return string(data), nil
	}

	result, _, err := transform.String(enc.NewDecoder(), string(data))
	if err != nil {
		return "", fmt.Errorf("decoding from %s: %w", name, err)
	}
	return result, nil
}

// charsetAliases maps the legacy/alternate spellings newsreaders send
// in a Content-Type or encoded-word charset token onto the canonical
// name htmlindex.Get expects. us-ascii articles are remapped to
// windows-1252 since 7-bit ASCII decodes identically under either and
// stray high-bit bytes are far more often cp1252 than true ASCII.
var charsetAliases = map[string]string{
	"iso-8859-15": "iso-8859-15", "iso8859-15": "iso-8859-15", "iso_8859-15": "iso-8859-15",
	"latin-9": "iso-8859-15", "latin9": "iso-8859-15",

	"iso-8859-1": "iso-8859-1", "iso8859-1": "iso-8859-1", "iso_8859-1": "iso-8859-1",
	"latin-1": "iso-8859-1", "latin1": "iso-8859-1",

	"iso-8859-2": "iso-8859-2", "iso8859-2": "iso-8859-2", "iso_8859-2": "iso-8859-2",
	"latin-2": "iso-8859-2", "latin2": "iso-8859-2",

	"windows-1252": "windows-1252", "cp1252": "windows-1252", "win1252": "windows-1252",
	"windows-1251": "windows-1251", "cp1251": "windows-1251", "win1251": "windows-1251",
	"windows-1250": "windows-1250", "cp1250": "windows-1250", "win1250": "windows-1250",

	"utf-8": "utf-8", "utf8": "utf-8",

	"us-ascii": "windows-1252", "ascii": "windows-1252",
}

// NormalizeName maps common charset aliases onto the canonical name
// htmlindex expects, passing through anything not in the alias table
// unchanged so htmlindex.Get can still try its own aliasing.
func NormalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := charsetAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeHeaders rewrites every value of h in place to its UTF-8
// form, for display or wildmat comparison of headers that arrived with
// encoded-words or a legacy charset.
func NormalizeHeaders(h Headers) {
	for _, name := range h.Names() {
		values, ok := h.Values(name)
		if !ok {
			continue
		}
		converted := make([]string, len(values))
		for i, v := range values {
			converted[i] = ToUTF8(v)
		}
		h.Set(name, converted...)
	}
}

// Headers is the subset of domain.ArticleHeaders NormalizeHeaders needs,
// kept narrow so charset does not import domain.
type Headers interface {
	Names() []string
	Values(name string) ([]string, bool)
	Set(name string, values ...string)
}
