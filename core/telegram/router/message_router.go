package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/guidebot/core/telegram"
	"github.com/m3rciful/guidebot/core/telegram/middleware"
)

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes handles plain text: slash commands typed with arguments or in
// unexpected form are resolved through the registry, anything else goes to
// the registry fallback, then UnknownText.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(firstWord(c.Text())); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
}

func firstWord(text string) string {
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			return text[:i]
		}
	}
	return text
}
