// Package policy implements the admission decisions behind
// capability.PolicyService: posting, IHAVE transfer, new-group
// advertisement, and per-article acceptance. The send/exclude/reject
// precedence follows the INN2-style newsfeeds patterns in
// internal/nntp/nntp-peering-pattern.go and nntp-peering.go; the
// wildcard matcher itself is compiled to regexp rather than ported,
// following the regexp-based sanitizing in
// internal/database/utils.go.
package policy

import (
	"regexp"
	"strings"
	"sync"
)

// MatchResult is the outcome of evaluating a newsgroup against a
// peer's send/exclude/reject pattern sets.
type MatchResult struct {
	Matched     bool
	Action      string // "send", "exclude", "reject", "no-send"
	Pattern     string
	Explanation string
}

// MatchNewsgroupPatterns evaluates one newsgroup against a peer's
// pattern sets in INN2 newsfeeds precedence: reject (@) overrides
// everything, then send must match, then exclude (!) can still veto.
func MatchNewsgroupPatterns(newsgroup string, sendPatterns, excludePatterns, rejectPatterns []string) MatchResult {
	for _, pattern := range rejectPatterns {
		if matchSinglePattern(newsgroup, pattern) {
			return MatchResult{Matched: true, Action: "reject", Pattern: pattern, Explanation: "article rejected: " + pattern}
		}
	}

	sendMatch := false
	sendPattern := ""
	for _, pattern := range sendPatterns {
		if matchSinglePattern(newsgroup, pattern) {
			sendMatch = true
			sendPattern = pattern
			break
		}
	}
	if !sendMatch {
		return MatchResult{Matched: false, Action: "no-send", Explanation: "newsgroup does not match any send pattern"}
	}

	for _, pattern := range excludePatterns {
		if matchSinglePattern(newsgroup, pattern) {
			return MatchResult{Matched: true, Action: "exclude", Pattern: pattern, Explanation: "newsgroup excluded from send: " + pattern}
		}
	}

	return MatchResult{Matched: true, Action: "send", Pattern: sendPattern, Explanation: "ok"}
}

// MatchArticleForPeer decides whether a crossposted article should be
// sent to a peer: reject wins if any newsgroup matches a reject
// pattern; otherwise the article sends if at least one newsgroup
// clears send+exclude.
func MatchArticleForPeer(newsgroups []string, sendPatterns, excludePatterns, rejectPatterns []string) MatchResult {
	for _, newsgroup := range newsgroups {
		for _, pattern := range rejectPatterns {
			if matchSinglePattern(newsgroup, pattern) {
				return MatchResult{Matched: true, Action: "reject", Pattern: pattern, Explanation: "article rejected due to newsgroup: " + newsgroup}
			}
		}
	}

	var sent, excluded int
	for _, newsgroup := range newsgroups {
		switch MatchNewsgroupPatterns(newsgroup, sendPatterns, excludePatterns, rejectPatterns).Action {
		case "send":
			sent++
		case "exclude":
			excluded++
		}
	}
	if sent > 0 {
		return MatchResult{Matched: true, Action: "send", Explanation: "article has valid newsgroups for sending"}
	}
	if excluded > 0 {
		return MatchResult{Matched: false, Action: "exclude", Explanation: "all matching newsgroups are excluded"}
	}
	return MatchResult{Matched: false, Action: "no-send", Explanation: "no newsgroups match send patterns"}
}

func matchSinglePattern(newsgroup, pattern string) bool {
	if strings.HasPrefix(pattern, "!") || strings.HasPrefix(pattern, "@") {
		pattern = pattern[1:]
	}
	re, err := compiledWildcard(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(newsgroup)
}

// wildcardCache memoizes the regexp compiled for each distinct glob
// pattern. Peer pattern lists are fixed at config load time but every
// incoming article re-evaluates them against every newsgroup, so
// recompiling the same handful of patterns per article would be pure
// waste.
var wildcardCache sync.Map // pattern string -> *regexp.Regexp

// compiledWildcard translates an INN2-style glob (* for any run of
// characters, ? for exactly one) into an anchored regexp and caches
// the result.
func compiledWildcard(pattern string) (*regexp.Regexp, error) {
	if cached, ok := wildcardCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	wildcardCache.Store(pattern, re)
	return re, nil
}

// GetPatternType classifies a pattern by its prefix.
func GetPatternType(pattern string) string {
	if strings.HasPrefix(pattern, "!") {
		return "exclude"
	}
	if strings.HasPrefix(pattern, "@") {
		return "reject"
	}
	return "normal"
}

// NormalizePattern strips the "!" or "@" prefix, returning the bare
// wildcard expression.
func NormalizePattern(pattern string) string {
	if strings.HasPrefix(pattern, "!") || strings.HasPrefix(pattern, "@") {
		return pattern[1:]
	}
	return pattern
}

// DefaultNoSendPatterns excludes administrative/unwanted hierarchies
// from outbound feeds by default.
var DefaultNoSendPatterns = []string{
	"!control", "!control.*",
	"!junk", "!junk.*",
	"!local", "!local.*",
	"!ka.*", "!gmane.*", "!gwene.*",
}

// DefaultBinaryExcludePatterns rejects binary/warez-style hierarchies
// whole-article, matching the teacher's INN2-derived blocklist.
var DefaultBinaryExcludePatterns = []string{
	"@dk.b.*", "@*dvdnordic*",
	"@a.b.*", "@ab.alt.*", "@ab.mom*", "@alt.b.*",
	"@*alt-bin*", "@*alt.bin*", "@*alt.dvd*", "@*alt.hdtv*",
	"@*alt.binaries*", "@*alt.binaries.dvd*", "@*alt.binaries.hdtv*",
	"@*nairies*", "@*naries*", "@*.bain*", "@*.banar*", "@*.banir*",
	"@*.biana*", "@*.bianr*", "@*.biin*", "@*.binar*", "@*.binai*",
	"@*.binaer*", "@*.bineri*", "@*.biniar*", "@*.binira*",
	"@*.binrie*", "@*.biya*", "@*.boneles*", "@*cd.image*",
	"@*dateien*", "@*.files*", "@*.newfiles*", "@*music.bin*",
	"@*nzb*", "@*mp3*", "@*ictures*", "@*iktures*",
	"@*crack*", "@*serial*", "@*warez*",
	"@unidata.*",
}

// DefaultSexExcludePatterns rejects adult-content hierarchies.
var DefaultSexExcludePatterns = []string{
	"@*erotic*", "@*gay*", "@*paedo*", "@*pedo*", "@*porn*", "@*sex*", "@*xxx*",
}
