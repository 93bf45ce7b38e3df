package parse

import "regexp"

// viewsStrategy is one heuristic for locating the primary engagement count.
// It returns every candidate token in document order. Strategies run from
// most structurally specific to most generic; the first token that passes
// range validation wins.
type viewsStrategy func(text string) []string

var (
	// Anchored to the header divider the raw rendition places between the
	// thread title and the view counter.
	viewsAfterDivider = regexp.MustCompile(`(?i)={3,}\s*(\d+(?:\.\d+)?[KMB]?)\s+views?\b`)

	// A view counter alone on its own line.
	viewsOwnLine = regexp.MustCompile(`(?im)^\s*(\d+(?:\.\d+)?[KMB]?)\s+views?\s*$`)

	// "<number> views" anywhere in the document.
	viewsAnywhere = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?[KMB]?)\s+views?\b`)
)

func allFirstGroups(re *regexp.Regexp) viewsStrategy {
	return func(text string) []string {
		matches := re.FindAllStringSubmatch(text, -1)
		tokens := make([]string, 0, len(matches))
		for _, m := range matches {
			tokens = append(tokens, m[1])
		}
		return tokens
	}
}

var viewsStrategies = []viewsStrategy{
	allFirstGroups(viewsAfterDivider),
	allFirstGroups(viewsOwnLine),
	allFirstGroups(viewsAnywhere),
}

// extractViewsToken runs the strategy cascade against the given text and
// returns the first candidate token that validates against bounds.
func extractViewsToken(text string, bounds Bounds) (string, bool) {
	for _, strategy := range viewsStrategies {
		for _, token := range strategy(text) {
			if _, valid := bounds.Validate(token); valid {
				return token, true
			}
		}
	}
	return "", false
}

// Views extracts the primary engagement count. Matching runs against the
// normalized text first and retries against the original on a miss, since
// normalization can occasionally remove a separator a pattern depends on.
func Views(raw string, bounds Bounds) (int64, bool) {
	token, ok := extractViewsToken(Normalize(raw), bounds)
	if !ok {
		token, ok = extractViewsToken(raw, bounds)
	}
	if !ok {
		return 0, false
	}
	value, _ := bounds.Validate(token)
	return value, true
}
