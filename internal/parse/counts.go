package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// countToken matches a displayed engagement count such as "313", "1.5K",
// or "12M". Case-insensitive on the magnitude suffix.
var countToken = regexp.MustCompile(`^(?i)\d+(\.\d+)?[KMB]?$`)

// Bounds is the sane range an engagement count must fall within after
// suffix conversion. The defaults mirror observed display conventions and
// are deliberately configurable rather than fixed invariants.
type Bounds struct {
	Min int64
	Max int64
}

// DefaultBounds covers 1 through 100 million.
func DefaultBounds() Bounds {
	return Bounds{Min: 1, Max: 100_000_000}
}

// ParseCount converts a display token ("1.5M") into an integer value.
// It returns false when the token does not match the count format.
func ParseCount(token string) (int64, bool) {
	token = strings.TrimSpace(token)
	if !countToken.MatchString(token) {
		return 0, false
	}
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(strings.ToUpper(token), "K"):
		multiplier = 1_000
		token = token[:len(token)-1]
	case strings.HasSuffix(strings.ToUpper(token), "M"):
		multiplier = 1_000_000
		token = token[:len(token)-1]
	case strings.HasSuffix(strings.ToUpper(token), "B"):
		multiplier = 1_000_000_000
		token = token[:len(token)-1]
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(value * float64(multiplier))), true
}

// Validate parses the token and checks it against the configured range.
// Out-of-range values are rejected so the next candidate pattern is tried.
func (b Bounds) Validate(token string) (int64, bool) {
	value, ok := ParseCount(token)
	if !ok {
		return 0, false
	}
	if value < b.Min || value > b.Max {
		return 0, false
	}
	return value, true
}

// FormatCount renders an integer the way the platform displays it,
// using K/M/B suffixes with at most one decimal place.
func FormatCount(value int64) string {
	format := func(v int64, mult int64, suffix string) string {
		whole := v / mult
		frac := (v % mult) * 10 / mult
		if frac == 0 {
			return fmt.Sprintf("%d%s", whole, suffix)
		}
		return fmt.Sprintf("%d.%d%s", whole, frac, suffix)
	}
	switch {
	case value >= 1_000_000_000:
		return format(value, 1_000_000_000, "B")
	case value >= 1_000_000:
		return format(value, 1_000_000, "M")
	case value >= 1_000:
		return format(value, 1_000, "K")
	default:
		return strconv.FormatInt(value, 10)
	}
}
