package pipeline

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves the raw text rendition of a post URL from one backend.
// Failures are returned as typed errors from the fetch package.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// SnapshotSink optionally retains the raw fetched text for a post.
// A nil sink disables retention.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, postID string, raw string) (string, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ReportStore persists the finalized run summary.
type ReportStore interface {
	StoreReport(ctx context.Context, report Report) error
}

// Publisher pushes run-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
