package helpers

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
)

const contextKey = "logger_ctx"

var baseCtx atomic.Pointer[context.Context]

// SetBaseContext sets the parent of every per-update context, so work
// started by handlers stops with the bot.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		baseCtx.Store(nil)
		return
	}
	baseCtx.Store(&ctx)
}

func base() context.Context {
	if p := baseCtx.Load(); p != nil {
		return *p
	}
	return context.Background()
}

// StoreContext attaches ctx to the update for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok
}

// BuildContext returns the per-update context carrying rid and
// update/user/chat ids, creating and caching it on first use.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	if c == nil {
		return base()
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := logger.WithRID(base(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	if tg := logger.Component(logger.CompTG); tg != nil {
		ctx = logger.WithLogger(ctx, tg)
	}
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
