package discover

import (
	"context"
	"time"
)

// Browser is the rendered-session collaborator the engine scrolls.
// Authentication and cookie bootstrap are entirely external.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	CurrentHTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) ([]string, error)
	ScrollBy(ctx context.Context, dx, dy int) error
	Wait(ctx context.Context, d time.Duration) error
}
