package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	"github.com/m3rciful/guidebot/core/telegram/middleware"
)

// DefaultMiddlewares returns the bot-wide chain, outermost first: panic
// recovery, the optional per-user rate limit, update logging and output
// counters.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited func(tele.Context) error) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil {
		if mw, ok := rateLimit(cfg.RateLimit, onLimited); ok {
			chain = append(chain, mw)
		}
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(rl coreconfig.RateLimitConfig, onLimited func(tele.Context) error) (Middleware, bool) {
	interval := time.Duration(rl.IntervalMS) * time.Millisecond
	if interval <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(rl.ExcludeUpdates))
	for _, kind := range rl.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  interval,
			Exclude:   exclude,
			OnLimited: onLimited,
		}),
	}, true
}
