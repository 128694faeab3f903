package helpers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	"github.com/m3rciful/guidebot/core/telegram/netutil"
	"github.com/m3rciful/guidebot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the outbound sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompSender, "queue.fallback",
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

func sendSync(ctx context.Context, action, endpoint string, run func() error) error {
	if disp := currentDispatcher(); disp != nil {
		return disp.Do(ctx, action, endpoint, run)
	}
	return run()
}

// SendText queues a plain text message to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMDV2 queues a MarkdownV2 message with optional reply markup.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: rm})
}

// DeliverOptions controls Deliver.
type DeliverOptions struct {
	// Edit replaces the message the callback came from with the first part.
	Edit bool
	// Pause is waited between consecutive parts.
	Pause time.Duration
}

// Deliver sends msgs in order on the calling goroutine, attaching markup to
// the last one. Each part is retried by the dispatcher when one is wired.
func Deliver(c tele.Context, msgs []string, markup *tele.ReplyMarkup, o DeliverOptions) error {
	ctx := BuildContext(c)
	for i, msg := range msgs {
		if i > 0 && o.Pause > 0 {
			if err := sleep(ctx, o.Pause); err != nil {
				return err
			}
		}
		opts := &tele.SendOptions{DisableWebPagePreview: true}
		if i == len(msgs)-1 {
			opts.ReplyMarkup = markup
		}
		var err error
		if i == 0 && o.Edit {
			err = sendSync(ctx, "edit.text", "editMessageText", func() error {
				return editOrSend(ctx, c, msg, opts)
			})
		} else {
			err = sendSync(ctx, "send.text", "sendMessage", func() error {
				return c.Send(msg, opts)
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func editOrSend(ctx context.Context, c tele.Context, msg string, opts *tele.SendOptions) error {
	err := c.Edit(msg, opts)
	switch {
	case err == nil || IsNotModified(err):
		return nil
	case netutil.ShouldRetry(err):
		return err
	case !errors.Is(err, tele.ErrBadContext):
		// too old, deleted or otherwise not editable
		logger.Debug(ctx, logger.CompTG, "edit.fallback", slog.String("err", err.Error()))
	}
	return c.Send(msg, opts)
}

// IsNotModified reports Telegram's refusal to apply an edit that changes nothing.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
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
