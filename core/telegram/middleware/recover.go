package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
)

// RecoverMiddleware turns handler panics into logged errors.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(tghelpers.BuildContext(c), logger.CompTG, "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return next(c)
	}
}
