// Package parse turns raw fetched post text into validated engagement
// metrics and root-post content. Everything in this package is pure: no
// I/O, no shared state, each heuristic is an independent function tried
// in a fixed priority order.
package parse

import "strings"

// unicodeSpaces lists the space variants that feed renditions sprinkle
// into otherwise plain text.
var unicodeSpaces = []string{
	" ", // no-break space
	" ", " ", " ", " ", " ",
	" ", " ", " ", " ", " ",
	" ", // en/em/thin/hair spaces
	" ", // narrow no-break space
	" ", // medium mathematical space
	"　", // ideographic space
	"\t",
}

var spaceReplacer = newSpaceReplacer()

func newSpaceReplacer() *strings.Replacer {
	pairs := make([]string, 0, 2*len(unicodeSpaces)+4)
	for _, sp := range unicodeSpaces {
		pairs = append(pairs, sp, " ")
	}
	pairs = append(pairs, "\r\n", "\n", "\r", "\n")
	return strings.NewReplacer(pairs...)
}

// Normalize collapses Unicode space variants to ASCII spaces and unifies
// line endings. It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return spaceReplacer.Replace(s)
}
