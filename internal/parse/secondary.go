package parse

import (
	"regexp"
	"strings"
)

// Secondary count heuristics. The rendered rendition places the engagement
// row (likes, comments, reposts, shares) as bare numeric lines immediately
// after the post's content image marker.

const (
	// contextWindow is how many surrounding lines count as "nearby" when
	// the fallback scan checks a numeric token's context.
	contextWindow = 10

	// maxSecondaryCounts caps the engagement row at its canonical length.
	maxSecondaryCounts = 4

	// minMarkerRun is the minimum contiguous run accepted from the image
	// marker scan before falling back to the whole-document scan.
	minMarkerRun = 3
)

var (
	imageMarkerRe = regexp.MustCompile(`(?i)!\[|\bimage\b|\bphoto\b`)
	translateRe   = regexp.MustCompile(`(?i)^\s*translate(d)?\s*$`)
)

// SecondaryCounts holds the engagement row in canonical order.
type SecondaryCounts struct {
	Likes       int64
	Comments    int64
	Reposts     int64
	Shares      int64
	HasLikes    bool
	HasComments bool
	HasReposts  bool
	HasShares   bool
}

// Secondary extracts likes, comments, reposts, and shares. It first takes
// the contiguous run of validated numeric lines after the first content
// image marker; if that yields fewer than three values it rescans the whole
// document for numeric lines whose nearby context carries an image or
// translate marker.
func Secondary(raw string, bounds Bounds) SecondaryCounts {
	lines := strings.Split(Normalize(raw), "\n")
	values := countsAfterImageMarker(lines, bounds)
	if len(values) < minMarkerRun {
		values = countsByContext(lines, bounds)
	}
	return assignCanonical(values)
}

func countsAfterImageMarker(lines []string, bounds Bounds) []int64 {
	start := -1
	for i, line := range lines {
		if imageMarkerRe.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	var values []int64
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		value, ok := bounds.Validate(trimmed)
		if !ok {
			break
		}
		values = append(values, value)
		if len(values) == maxSecondaryCounts {
			break
		}
	}
	return values
}

func countsByContext(lines []string, bounds Bounds) []int64 {
	var values []int64
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		value, ok := bounds.Validate(trimmed)
		if !ok {
			continue
		}
		if !hasMarkerNearby(lines, i) {
			continue
		}
		values = append(values, value)
		if len(values) == maxSecondaryCounts {
			break
		}
	}
	return values
}

func hasMarkerNearby(lines []string, idx int) bool {
	lo := max(0, idx-contextWindow)
	hi := min(len(lines), idx+contextWindow+1)
	for _, line := range lines[lo:hi] {
		if imageMarkerRe.MatchString(line) || translateRe.MatchString(line) {
			return true
		}
	}
	return false
}

func assignCanonical(values []int64) SecondaryCounts {
	var counts SecondaryCounts
	if len(values) > 0 {
		counts.Likes, counts.HasLikes = values[0], true
	}
	if len(values) > 1 {
		counts.Comments, counts.HasComments = values[1], true
	}
	if len(values) > 2 {
		counts.Reposts, counts.HasReposts = values[2], true
	}
	if len(values) > 3 {
		counts.Shares, counts.HasShares = values[3], true
	}
	return counts
}
