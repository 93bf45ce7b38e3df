package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// clientConfig tunes the shared Colly collector both backends build on.
type clientConfig struct {
	userAgent   string
	timeout     time.Duration
	maxParallel int
}

// client wraps a base Colly collector cloned per request.
type client struct {
	base    *colly.Collector
	timeout time.Duration
	logger  *zap.Logger
}

func newClient(cfg clientConfig, logger *zap.Logger) (*client, error) {
	if cfg.timeout <= 0 {
		return nil, errors.New("fetch timeout must be > 0")
	}
	if cfg.maxParallel <= 0 {
		cfg.maxParallel = 1
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.userAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.maxParallel * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.timeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.maxParallel,
	}); err != nil {
		return nil, err
	}

	return &client{
		base:    base,
		timeout: cfg.timeout,
		logger:  logger,
	}, nil
}

type getResult struct {
	body string
	err  error
}

// get fetches requestURL with the given headers and returns the body text.
// A context deadline shorter than the configured timeout wins, so fallback
// attempts fail fast.
func (c *client) get(ctx context.Context, targetURL, requestURL string, headers map[string]string) (string, error) {
	collector := c.base.Clone()
	collector.SetRequestTimeout(c.effectiveTimeout(ctx))

	resultCh := make(chan getResult, 1)
	var once sync.Once
	send := func(res getResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			send(getResult{err: classify(targetURL, r.StatusCode, nil)})
			return
		}
		send(getResult{body: string(r.Body)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(getResult{err: classify(targetURL, status, err)})
	})

	if err := collector.Visit(requestURL); err != nil {
		return "", classify(targetURL, 0, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return "", classify(targetURL, 0, err)
		}
		return res.body, res.err
	default:
		return "", &Error{Kind: KindTransport, URL: targetURL, Err: errors.New("fetch produced no result")}
	}
}

func (c *client) effectiveTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}
