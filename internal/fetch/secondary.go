package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// SecondaryConfig configures the self-hosted rendering service.
type SecondaryConfig struct {
	Endpoint     string
	UserAgent    string
	Timeout      time.Duration
	MaxParallel  int
	WaitSelector string
	NoCache      bool
}

// Secondary fetches post text through the self-hosted renderer, passing a
// wait-for-selector hint, a timeout hint, and an optional no-cache flag.
type Secondary struct {
	client       *client
	endpoint     string
	waitSelector string
	timeoutHint  time.Duration
	noCache      bool
	logger       *zap.Logger
}

// NewSecondary builds the secondary backend client.
func NewSecondary(cfg SecondaryConfig, logger *zap.Logger) (*Secondary, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("secondary endpoint is required")
	}
	c, err := newClient(clientConfig{
		userAgent:   cfg.UserAgent,
		timeout:     cfg.Timeout,
		maxParallel: cfg.MaxParallel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init secondary client: %w", err)
	}
	return &Secondary{
		client:       c,
		endpoint:     cfg.Endpoint,
		waitSelector: cfg.WaitSelector,
		timeoutHint:  cfg.Timeout,
		noCache:      cfg.NoCache,
		logger:       logger,
	}, nil
}

// Fetch retrieves the raw text for rawURL via the self-hosted renderer.
func (s *Secondary) Fetch(ctx context.Context, rawURL string) (string, error) {
	params := url.Values{}
	params.Set("url", rawURL)
	if s.waitSelector != "" {
		params.Set("wait_for", s.waitSelector)
	}
	params.Set("timeout", fmt.Sprintf("%d", int(s.timeoutHint.Seconds())))
	if s.noCache {
		params.Set("no_cache", "true")
	}
	requestURL := fmt.Sprintf("%s?%s", s.endpoint, params.Encode())
	headers := map[string]string{
		"Accept": "text/plain",
	}
	body, err := s.client.get(ctx, rawURL, requestURL, headers)
	if err != nil {
		s.logger.Debug("secondary fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", err
	}
	return body, nil
}
