package parse

import (
	"regexp"
	"strings"
)

// Root-post content extraction. The raw rendition interleaves the root
// post with replies, quotes, and navigation chrome; the "Translate" line
// that follows root-post text is the strongest structural signal.

const (
	minContentLength   = 8
	minParagraphLength = 20

	// translateLookahead is how many lines below a candidate may hold the
	// translate marker for the candidate to count as anchored.
	translateLookahead = 2
)

var (
	replyMarkerRe  = regexp.MustCompile(`^\s*>{1,}`)
	relativeTimeRe = regexp.MustCompile(`(?i)^\s*\d+\s*(s|m|h|d|w|sec|secs|min|mins|hr|hrs|second|seconds|minute|minutes|hour|hours|day|days|week|weeks)(\s+ago)?\s*$`)
	punctuationRe  = regexp.MustCompile(`[.,!?;:'"()\x{2019}\x{201c}\x{201d}]`)

	boilerplatePrefixes = []string{
		"log in", "login", "sign up", "sign in", "download", "open app",
		"get the app", "home", "search", "notifications", "profile",
		"more replies", "replying to", "reply", "view replies",
		"see more", "follow", "verified",
	}
)

// Content extracts the root-post text, skipping reply blocks, navigation
// boilerplate, bare numbers, and relative timestamps. A candidate followed
// within two lines by a "Translate" marker is preferred; otherwise the
// first sufficiently long punctuated candidate wins. When the document
// carries no translate anchor at all, the first paragraph-like line longer
// than twenty characters is used.
func Content(raw string) (string, bool) {
	lines := strings.Split(Normalize(raw), "\n")

	hasAnchor := false
	for _, line := range lines {
		if translateRe.MatchString(line) {
			hasAnchor = true
			break
		}
	}

	var candidates []int
	for i, line := range lines {
		if isCandidate(line) {
			candidates = append(candidates, i)
		}
	}

	// Strongest signal: candidate anchored by a translate marker below it.
	for _, i := range candidates {
		if anchoredByTranslate(lines, i) {
			return strings.TrimSpace(lines[i]), true
		}
	}

	for _, i := range candidates {
		trimmed := strings.TrimSpace(lines[i])
		if len(trimmed) > minContentLength && punctuationRe.MatchString(trimmed) {
			return trimmed, true
		}
	}

	// Only when the document carries no content anchor at all.
	if !hasAnchor {
		for _, i := range candidates {
			trimmed := strings.TrimSpace(lines[i])
			if len(trimmed) > minParagraphLength {
				return trimmed, true
			}
		}
	}
	return "", false
}

func anchoredByTranslate(lines []string, idx int) bool {
	hi := min(len(lines), idx+translateLookahead+1)
	for _, line := range lines[idx+1 : hi] {
		if translateRe.MatchString(line) {
			return true
		}
	}
	return false
}

func isCandidate(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if replyMarkerRe.MatchString(trimmed) {
		return false
	}
	if isBoilerplate(trimmed) {
		return false
	}
	if _, numeric := ParseCount(trimmed); numeric {
		return false
	}
	if relativeTimeRe.MatchString(trimmed) {
		return false
	}
	if translateRe.MatchString(trimmed) {
		return false
	}
	return true
}

func isBoilerplate(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
