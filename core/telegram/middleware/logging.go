package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	"github.com/m3rciful/guidebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
)

const receiptTTL = 10 * time.Second

// receipts remembers update ids whose receipt line was already written.
var receipts = cache.New(receiptTTL, time.Minute)

func alreadyLogged(updateID int) bool {
	return receipts.Add(strconv.Itoa(updateID), struct{}{}, receiptTTL) != nil
}

// LoggerMiddleware builds the request context for an update and logs one
// receipt line per update id.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		user := c.Sender()
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)

		ctx := tghelpers.BuildContext(c)

		if !alreadyLogged(upd.ID) && logger.ShouldSampleDebug() {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user != nil && user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
			switch {
			case upd.Callback != nil:
				key, _ := callbacks.Parse(upd.Callback)
				attrs = append(attrs,
					slog.String("action", logger.SanitizeLimit(key, 64)),
					slog.String("payload", logger.SanitizeLimit(callbacks.Data(c), 128)),
				)
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.Debug(ctx, logger.CompTG, "update.received", attrs...)
		}

		return next(c)
	}
}
