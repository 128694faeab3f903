package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/guidebot/core/logger"
	"github.com/m3rciful/guidebot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second

	// getUpdates holds the response until the long-poll timeout elapses, so
	// request deadlines sit on top of it.
	pollMargin = 15 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls whose
// deadlines outlast a long poll of the given duration.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	if longPoll < 0 {
		longPoll = 0
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: longPoll + pollMargin,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: longPoll + 2*pollMargin,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport repeats requests that failed before a response arrived.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		logger.Debug(req.Context(), logger.CompTG, "http.retry",
			slog.Int("attempt", attempt),
			slog.String("endpoint", endpointOf(req)),
			slog.Duration("backoff", delay),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		if err := wait(req.Context(), delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// endpointOf returns the API method name without exposing the bot token.
func endpointOf(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	p := req.URL.Path
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
