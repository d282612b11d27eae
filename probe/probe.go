// Package probe implements the readiness probe loop the shell runs after
// spawning the server: a fixed number of plain HTTP GET attempts against the
// local server URL, paced by a fixed interval.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAttempts is the probe attempt budget used in production.
	DefaultAttempts = 30
	// DefaultInterval is the pacing between attempts used in production.
	DefaultInterval = 1 * time.Second

	// progressEvery controls how often a still-waiting note is logged.
	progressEvery = 5
)

// Result is the outcome of a single reachability check.
type Result struct {
	Attempt    int
	StatusCode int   // Zero when the request never reached the server.
	Err        error // Connection-level failure, if any.
}

// Ready reports whether this check counts as a success: any response with a
// success-range status code.
func (r Result) Ready() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Config holds configuration options for a Prober.
type Config struct {
	URL         string        // Required. The endpoint to poll.
	Attempts    int           // Optional, defaults to 30.
	Interval    time.Duration // Optional, defaults to 1s.
	Client      *http.Client  // Optional, defaults to a client with a per-request timeout.
	Logger      *slog.Logger  // Optional, defaults to slog.Default().
	BearerToken string        // Optional Authorization header value for probe requests.
}

// Prober polls a URL until it responds or the attempt budget is exhausted.
type Prober struct {
	url      string
	attempts int
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
	bearer   string
}

// New creates a Prober, applying defaults for unset options.
func New(config Config) (*Prober, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("probe URL is required")
	}

	attempts := config.Attempts
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	interval := config.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{
		url:      config.URL,
		attempts: attempts,
		interval: interval,
		client:   client,
		logger:   logger.With("component", "Prober"),
		bearer:   config.BearerToken,
	}, nil
}

// WaitReady runs the probe loop. Each iteration suspends on a timer channel
// for the pacing interval, then issues one GET. It returns true as soon as a
// check succeeds, or false once the attempt budget is exhausted or ctx is
// cancelled. Exhaustion is not an error: callers decide what it means.
// The second return value is the number of attempts consumed.
func (p *Prober) WaitReady(ctx context.Context) (bool, int) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		select {
		case <-ctx.Done():
			p.logger.Info("Readiness probe cancelled", "url", p.url, "attempts", attempt-1)
			return false, attempt - 1
		case <-time.After(p.interval):
		}

		result := p.check(ctx, attempt)
		if result.Ready() {
			p.logger.Info("Server is ready", "url", p.url, "attempt", attempt, "status", result.StatusCode)
			return true, attempt
		}

		// Connection refusals and non-2xx responses both consume an attempt.
		if attempt%progressEvery == 0 {
			p.logger.Info("Still waiting for server to become ready",
				"url", p.url, "attempt", attempt, "maxAttempts", p.attempts, "lastError", result.Err)
		}
	}

	p.logger.Warn("Readiness probe budget exhausted", "url", p.url, "attempts", p.attempts)
	return false, p.attempts
}

// check performs a single reachability check.
func (p *Prober) check(ctx context.Context, attempt int) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Result{Attempt: attempt, Err: err}
	}
	if p.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+p.bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{Attempt: attempt, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) // Allow connection reuse between attempts.

	return Result{Attempt: attempt, StatusCode: resp.StatusCode}
}
