package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// UpdateKind classifies an update for rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware drops updates arriving from the same user within
// Interval of the previously accepted one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	seen := cache.New(opts.Interval, 10*opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}

			// Add fails while the previous entry is still live.
			if err := seen.Add(strconv.FormatInt(user.ID, 10), struct{}{}, opts.Interval); err != nil {
				logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "tg.rate_limit",
					slog.String("status", "rate_limited"),
					slog.Bool("rate_limited", true),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
