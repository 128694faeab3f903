package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
)

// AdminOptions configures AdminOnlyMiddleware. A zero AdminID locks the
// guarded handler for everyone.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allows(u *tele.User) bool {
	return o.AdminID != 0 && u != nil && u.ID == o.AdminID
}

func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.allows(c.Sender()) {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), logger.CompTG, "access.denied",
				slog.String("status", "skip"),
				slog.Bool("admin_configured", opts.AdminID != 0),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}
