// Package discover drives a scrolling browser session to collect a
// deduplicated, ordered list of post URLs from a feed.
package discover

import (
	"fmt"
	"regexp"
	"strings"
)

// minPostIDLength rejects identifiers too short to be real post IDs.
const minPostIDLength = 5

// reservedKeywords are path segments that look like post IDs but are
// navigation routes.
var reservedKeywords = map[string]struct{}{
	"login":         {},
	"signup":        {},
	"explore":       {},
	"search":        {},
	"direct":        {},
	"accounts":      {},
	"about":         {},
	"privacy":       {},
	"terms":         {},
	"settings":      {},
	"notifications": {},
}

// LinkPattern recognizes post links in rendered markup and yields the
// post identifier for each.
type LinkPattern struct {
	re *regexp.Regexp
}

// NewLinkPattern compiles a pattern. The expression must contain exactly
// one capture group holding the post identifier.
func NewLinkPattern(expr string) (*LinkPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile link pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("link pattern must have exactly one capture group, has %d", re.NumSubexp())
	}
	return &LinkPattern{re: re}, nil
}

// MustLinkPattern is NewLinkPattern for patterns known at compile time.
func MustLinkPattern(expr string) *LinkPattern {
	p, err := NewLinkPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match extracts the post identifier from an href, rejecting identifiers
// that are too short or collide with reserved navigation keywords.
func (p *LinkPattern) Match(href string) (string, bool) {
	m := p.re.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	id := m[1]
	if len(id) < minPostIDLength {
		return "", false
	}
	if _, reserved := reservedKeywords[strings.ToLower(id)]; reserved {
		return "", false
	}
	return id, true
}
