// Package upstream performs rate-limited GET requests against the open-data
// providers and records per-source request metrics.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/jellyfish-risk-service/internal/observability"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 4 << 20

// Config describes one provider endpoint.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second; <= 0 disables limiting
	UserAgent string
}

// StatusError is returned for any non-200 provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Getter issues GET requests for a single named provider.
type Getter struct {
	source     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewGetter creates a Getter for the named source.
func NewGetter(source string, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Getter {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := max(int(cfg.RateLimit), 1)
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Getter{
		source:    source,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		metrics: metrics,
		logger:  logger.With("source", source),
	}
}

// Get waits for the rate limiter, fetches fullURL and returns the body of a
// 200 response.
func (g *Getter) Get(ctx context.Context, fullURL string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		g.observe(outcomeFor(ctx, err), 0)
		return nil, fmt.Errorf("%s rate limit wait: %w", g.source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.observe(outcomeFor(ctx, err), time.Since(start))
		return nil, fmt.Errorf("%s request: %w", g.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.observe("error", time.Since(start))
		return nil, fmt.Errorf("%s API error: %w", g.source, &StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		g.observe(outcomeFor(ctx, err), time.Since(start))
		return nil, fmt.Errorf("%s read body: %w", g.source, err)
	}

	g.observe("success", time.Since(start))
	g.logger.Debug("upstream request complete", "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

// RecordInvalid counts a response that arrived but could not be decoded.
func (g *Getter) RecordInvalid() {
	if g.metrics != nil {
		g.metrics.SourceRequests.WithLabelValues(g.source, "invalid").Inc()
	}
}

// RecordSkipped counts provider records dropped during normalization.
func (g *Getter) RecordSkipped(n int) {
	if g.metrics != nil && n > 0 {
		g.metrics.SourceRecordsSkipped.WithLabelValues(g.source).Add(float64(n))
	}
}

func (g *Getter) observe(outcome string, d time.Duration) {
	if g.metrics == nil {
		return
	}
	g.metrics.SourceRequests.WithLabelValues(g.source, outcome).Inc()
	if d > 0 {
		g.metrics.SourceDuration.WithLabelValues(g.source).Observe(d.Seconds())
	}
}

func outcomeFor(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "error"
}
