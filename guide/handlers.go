package guide

import (
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	"github.com/m3rciful/guidebot/core/menu"
	"github.com/m3rciful/guidebot/core/telegram/callbacks"
	"github.com/m3rciful/guidebot/core/telegram/format"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
	"github.com/m3rciful/guidebot/core/telegram/keyboard"
)

func (a *App) handleStart(c tele.Context) error {
	screen := a.machine.Start()
	return tghelpers.Deliver(c, screen.Messages, keyboard.FromMenu(screen.Keyboard), tghelpers.DeliverOptions{})
}

// handleCallback answers the callback first, then renders. Notices never
// touch the displayed screen.
func (a *App) handleCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	out := a.machine.Handle(callbacks.Data(c))

	attrs := []slog.Attr{
		slog.String("action", out.Action.Kind.String()),
		slog.String("outcome", out.Kind.String()),
	}
	if out.Action.Token != "" {
		attrs = append(attrs, slog.String("token", out.Action.Token))
	}

	switch out.Kind {
	case menu.OutcomeRender:
		attrs = append(attrs,
			slog.String("view", string(out.Screen.View)),
			slog.Int("chunks", len(out.Screen.Messages)),
		)
		logger.Info(ctx, logger.CompTG, "menu.action", attrs...)
		if err := c.Respond(); err != nil {
			logger.Warn(ctx, logger.CompTG, "callback.answer", slog.String("err", logger.Sanitize(err.Error())))
		}
		return tghelpers.Deliver(c, out.Screen.Messages, keyboard.FromMenu(out.Screen.Keyboard), tghelpers.DeliverOptions{
			Edit:  true,
			Pause: a.pause,
		})
	case menu.OutcomeNotice:
		logger.Info(ctx, logger.CompTG, "menu.action", attrs...)
		return c.Respond(&tele.CallbackResponse{Text: out.Notice})
	default:
		logger.Debug(ctx, logger.CompTG, "menu.action", attrs...)
		return c.Respond()
	}
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, a.machine.Texts().StartHint)
}

func (a *App) handleIndexReport(c tele.Context) error {
	return tghelpers.SendMDV2(c, a.indexReport())
}

func (a *App) indexReport() string {
	stats := a.store.Stats()
	return format.KeyValues(
		[2]string{"Topics", strconv.Itoa(stats.Topics)},
		[2]string{"Subtopics", strconv.Itoa(stats.Subtopics)},
		[2]string{"Tokens", strconv.Itoa(a.idx.Len())},
		[2]string{"Origin", string(a.origin)},
		[2]string{"Covers store", strconv.FormatBool(a.idx.Covers(a.store))},
	)
}
