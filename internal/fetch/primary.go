package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PrimaryConfig configures the rate-limited remote fetch service.
type PrimaryConfig struct {
	Endpoint    string
	UserAgent   string
	Timeout     time.Duration
	MaxParallel int
	QPS         float64
}

// Primary fetches the plain-text rendition of a post through the remote
// fetch service. The service is rate limited upstream, so a local QPS
// budget keeps us under its ceiling.
type Primary struct {
	client   *client
	endpoint string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewPrimary builds the primary backend client.
func NewPrimary(cfg PrimaryConfig, logger *zap.Logger) (*Primary, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("primary endpoint is required")
	}
	c, err := newClient(clientConfig{
		userAgent:   cfg.UserAgent,
		timeout:     cfg.Timeout,
		maxParallel: cfg.MaxParallel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init primary client: %w", err)
	}
	var limiter *rate.Limiter
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	return &Primary{
		client:   c,
		endpoint: cfg.Endpoint,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Fetch retrieves the raw text for rawURL via the remote service.
func (p *Primary) Fetch(ctx context.Context, rawURL string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", classify(rawURL, 0, err)
		}
	}
	requestURL := fmt.Sprintf("%s?url=%s", p.endpoint, url.QueryEscape(rawURL))
	headers := map[string]string{
		"Accept": "text/plain",
	}
	body, err := p.client.get(ctx, rawURL, requestURL, headers)
	if err != nil {
		p.logger.Debug("primary fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", err
	}
	return body, nil
}
