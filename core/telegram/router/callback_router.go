package router

import (
	"log/slog"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/guidebot/core/telegram"
	"github.com/m3rciful/guidebot/core/telegram/callbacks"
	"github.com/m3rciful/guidebot/core/telegram/middleware"
)

// answerOnce forwards at most one callback answer to Telegram.
type answerOnce struct {
	tele.Context
	answered *atomic.Bool
}

func (a answerOnce) Respond(resp ...*tele.CallbackResponse) error {
	if !a.answered.CompareAndSwap(false, true) {
		return nil
	}
	return a.Context.Respond(resp...)
}

func (a answerOnce) RespondText(text string) error {
	return a.Respond(&tele.CallbackResponse{Text: text})
}

func (a answerOnce) RespondAlert(text string) error {
	return a.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// CallbackRoute dispatches OnCallback updates by callback key. Every
// callback is answered exactly once: by the handler, or with an empty
// answer after it returns.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.Parse(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("action", key)}

		ac := answerOnce{Context: c, answered: &atomic.Bool{}}
		defer func() { _ = ac.Respond() }()

		cbHandler, ok := reg.GetCallback(key)
		if !ok {
			cbHandler = reg.CallbackNotFound()
			extras = append(extras, slog.String("reason", "not_found"))
		}
		return handleWithSummary(ac, name, start, func() error {
			return cbHandler(ac)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
