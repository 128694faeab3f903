package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// writeOp is either a line to write or, with ack set, a flush barrier.
type writeOp struct {
	line []byte
	ack  chan error
}

// asyncWriter serializes log lines onto a single goroutine that copies them
// to every sink. Writes and flushes share one queue, so a Flush returns only
// after every line written before it reached the sinks.
type asyncWriter struct {
	ops  chan writeOp
	done chan struct{}

	mu     sync.RWMutex // guards closed against sends on a closed ops
	closed bool

	sinks []*bufio.Writer

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 << 10
	}
	w := &asyncWriter{
		ops:  make(chan writeOp, 256),
		done: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for op := range w.ops {
		if op.ack != nil {
			op.ack <- w.flushSinks()
			continue
		}
		w.record(w.copyLine(op.line))
	}
	w.record(w.flushSinks())
}

// Write queues a copy of p. It blocks when the queue is full rather than
// dropping the line.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	return w.send(writeOp{line: append([]byte(nil), p...)})
}

// Flush waits until everything queued so far is written out. It is a no-op
// on a closed writer, whose Close already flushed.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	if err := w.send(writeOp{ack: ack}); err != nil {
		if errors.Is(err, errWriterClosed) {
			return nil
		}
		return err
	}
	return <-ack
}

// Close drains the queue, flushes the sinks and returns the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ops)
	}
	w.mu.Unlock()
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) send(op writeOp) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.ops <- op
	return nil
}

// copyLine writes through every sink immediately; the buffers only batch
// the syscalls of a single line.
func (w *asyncWriter) copyLine(line []byte) error {
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			return err
		}
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
