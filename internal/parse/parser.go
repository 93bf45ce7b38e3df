package parse

// Extraction is the validated output of parsing one raw post rendition.
// Absence of a field is recorded via the Has flags, never as an error.
type Extraction struct {
	Views       int64
	Likes       int64
	Comments    int64
	Reposts     int64
	Shares      int64
	Content     string
	HasViews    bool
	HasLikes    bool
	HasComments bool
	HasReposts  bool
	HasShares   bool
	HasContent  bool
}

// Parser bundles the validation bounds so callers never reach for ambient
// configuration.
type Parser struct {
	bounds Bounds
}

// New constructs a Parser with the given validation bounds.
func New(bounds Bounds) *Parser {
	if bounds.Min == 0 && bounds.Max == 0 {
		bounds = DefaultBounds()
	}
	return &Parser{bounds: bounds}
}

// Parse runs every extraction heuristic over the raw text.
func (p *Parser) Parse(raw string) Extraction {
	var out Extraction
	if raw == "" {
		return out
	}

	out.Views, out.HasViews = Views(raw, p.bounds)

	counts := Secondary(raw, p.bounds)
	out.Likes, out.HasLikes = counts.Likes, counts.HasLikes
	out.Comments, out.HasComments = counts.Comments, counts.HasComments
	out.Reposts, out.HasReposts = counts.Reposts, counts.HasReposts
	out.Shares, out.HasShares = counts.Shares, counts.HasShares

	out.Content, out.HasContent = Content(raw)
	return out
}
