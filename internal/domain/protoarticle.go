package domain

import "strings"

// ProtoArticle is the raw on-the-wire article as received from a POST,
// IHAVE, or pull-sync payload: dot-unstuffed lines split at the first
// blank line into headers and body.
type ProtoArticle struct {
	HeaderLines []string
	BodyLines   []string
}

// ParseProtoArticle splits dot-unstuffed wire lines (terminator already
// stripped by the caller) into a ProtoArticle at the first blank line.
// Header continuation lines (starting with space or tab) are folded onto
// the preceding header line, matching RFC 5322 unfolding.
func ParseProtoArticle(lines []string) *ProtoArticle {
	p := &ProtoArticle{}
	inHeaders := true
	for _, line := range lines {
		if inHeaders {
			if line == "" {
				inHeaders = false
				continue
			}
			if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(p.HeaderLines) > 0 {
				p.HeaderLines[len(p.HeaderLines)-1] += " " + strings.TrimSpace(line)
				continue
			}
			p.HeaderLines = append(p.HeaderLines, line)
			continue
		}
		p.BodyLines = append(p.BodyLines, line)
	}
	return p
}

// Headers parses HeaderLines into an ArticleHeaders value. Malformed
// lines (no ':' separator) are skipped rather than rejecting the whole
// article; header-field validation happens separately via ValidateAll.
func (p *ProtoArticle) Headers() *ArticleHeaders {
	h := NewArticleHeaders()
	for _, line := range p.HeaderLines {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if name == "" {
			continue
		}
		h.Add(name, value)
	}
	return h
}

// Body joins BodyLines with CRLF, the canonical in-memory body form.
func (p *ProtoArticle) Body() string {
	return strings.Join(p.BodyLines, "\r\n")
}
