package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dialErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	defer d.Close()

	calls := 0
	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		calls++
		if calls < 3 {
			return dialErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Zero(t, d.ErrorCount())
}

func TestDefaultOptionsRetryServerErrors(t *testing.T) {
	d := NewDispatcher(Options{RetryBackoff: time.Millisecond})
	defer d.Close()
	require.Equal(t, DefaultMaxRetries, d.opts.MaxRetries)

	calls := 0
	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		calls++
		if calls == 1 {
			return &tele.Error{Code: 502, Description: "Bad Gateway"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNegativeMaxRetriesDisablesRetry(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: -1, RetryBackoff: time.Millisecond})
	defer d.Close()

	calls := 0
	err := d.Do(context.Background(), "send.text", "", func() error {
		calls++
		return dialErr()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDoStopsOnPermanentError(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Millisecond})
	defer d.Close()

	boom := errors.New("Bad Request: chat not found (400)")
	calls := 0
	err := d.Do(context.Background(), "send.text", "sendMessage", func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 1, d.ErrorCount())
}

func TestDoKeepsCallerOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4})
	defer d.Close()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, d.Do(context.Background(), "send.text", "", func() error {
			got = append(got, i)
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Hour})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := d.Do(ctx, "send.text", "", func() error {
		calls++
		return dialErr()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestEnqueueRunsAllJobsBeforeClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 64})
	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, d.Enqueue(context.Background(), "send.text", "", func() error {
			defer wg.Done()
			n.Add(1)
			return nil
		}))
	}
	wg.Wait()
	d.Close()
	assert.EqualValues(t, 50, n.Load())
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestEnqueueQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	defer d.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", "", func() error { return nil }))
	err := d.Enqueue(context.Background(), "overflow", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(release)
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_CC/sendMessage": dial tcp: timeout`)
	assert.NotContains(t, sanitizeErrorMessage(err), "AA-bb_CC")
	assert.Contains(t, sanitizeErrorMessage(err), "bot<redacted>")
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "dial", classifyError(dialErr()))
	assert.Equal(t, "http_4xx", classifyError(errors.New("telegram: Bad Request (400)")))
	assert.Equal(t, "http_5xx", classifyError(errors.New("telegram: internal (502)")))
	assert.Equal(t, "unknown", classifyError(errors.New("weird")))
}
