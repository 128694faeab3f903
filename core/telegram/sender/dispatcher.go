// Package sender runs outbound Telegram API calls under a shared retry policy.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	"github.com/m3rciful/guidebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

// DefaultMaxRetries is the number of extra attempts made for a transient
// failure when Options.MaxRetries is zero.
const DefaultMaxRetries = 2

// Options tunes a Dispatcher. Zero values select defaults.
type Options struct {
	QueueSize int
	Workers   int
	// MaxRetries is the number of extra attempts after a transient failure.
	// Zero selects DefaultMaxRetries; a negative value disables retries.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the wall time of one call including retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = DefaultMaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// delay is the pause before attempt+1. Flood control answers carry their
// own wait, which wins over the linear backoff.
func (o Options) delay(attempt int, err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return o.RetryBackoff * time.Duration(attempt)
}

type call struct {
	ctx    context.Context
	action string
	op     string
	run    func() error
}

func (c call) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	out = append(out, slog.String("action", c.action))
	if c.op != "" {
		out = append(out, slog.String("op", c.op))
	}
	return append(out, extra...)
}

// Dispatcher executes calls either on a worker pool (Enqueue) or on the
// caller's goroutine (Do). Both paths share the retry policy.
type Dispatcher struct {
	opts  Options
	queue chan call
	wg    sync.WaitGroup
	fails atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, queue: make(chan call, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for c := range d.queue {
				_ = d.execute(c)
			}
		}()
	}
	return d
}

// Enqueue hands run to a worker without waiting. Calls on different workers
// may finish in any order; run must tolerate being repeated.
func (d *Dispatcher) Enqueue(ctx context.Context, action, op string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- call{ctx: ctx, action: action, op: op, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs the call on the current goroutine and returns its final error, so
// successive Do calls keep their order.
func (d *Dispatcher) Do(ctx context.Context, action, op string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	return d.execute(call{ctx: ctx, action: action, op: op, run: run})
}

// ErrorCount is the number of calls that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 { return d.fails.Load() }

// Close rejects new work and waits for queued calls. It is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) execute(c call) error {
	parent := c.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	limit := d.opts.MaxRetries + 1
	attempt, err := 0, error(nil)
	for attempt < limit {
		attempt++
		if err = c.run(); err == nil {
			d.logSuccess(parent, c, attempt, start)
			return nil
		}
		if attempt == limit || !netutil.ShouldRetry(err) {
			break
		}
		wait := d.opts.delay(attempt, err)
		logger.Debug(parent, logger.CompSender, "send.retry", c.attrs(
			slog.Int("attempts", attempt),
			slog.Duration("backoff", wait),
			slog.String("err", sanitizeErrorMessage(err)),
		)...)
		if werr := sleep(ctx, wait); werr != nil {
			err = werr
			break
		}
	}

	d.fails.Add(1)
	logger.Error(parent, logger.CompSender, "send.fail", c.attrs(
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return err
}

func (d *Dispatcher) logSuccess(ctx context.Context, c call, attempt int, start time.Time) {
	if attempt == 1 {
		logger.Debug(ctx, logger.CompSender, "send.success", c.attrs(
			slog.String("status", "ok"),
			slog.Duration("duration", logger.Took(start)),
		)...)
		return
	}
	logger.Info(ctx, logger.CompSender, "send.retry.success", c.attrs(
		slog.String("status", "ok"),
		slog.Int("attempts", attempt),
		slog.Duration("duration", logger.Took(start)),
	)...)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sanitizeErrorMessage masks bot tokens that net/http puts into URL errors.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return logger.Sanitize(err.Error())
}

// classifyError buckets err into a short code for the err_code log field.
func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var dns *net.DNSError
	if errors.As(err, &dns) {
		if dns.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return "dial"
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return "tls"
	}

	switch code := statusCode(err); {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// statusCode extracts the HTTP status of a Telegram failure. Errors that
// lost their type keep the code as a trailing "(NNN)".
func statusCode(err error) int {
	var api *tele.Error
	if errors.As(err, &api) {
		return api.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}

	msg := strings.TrimSpace(err.Error())
	open := strings.LastIndexByte(msg, '(')
	if open < 0 || !strings.HasSuffix(msg, ")") {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}
