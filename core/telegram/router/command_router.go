package router

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	tg "github.com/m3rciful/guidebot/core/telegram"
	"github.com/m3rciful/guidebot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command and alias to its handler
// wrapped with the shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	var routes []tg.Route
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		inner := def.Handler
		h := func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), func() error { return inner(c) })
		}
		if def.AdminOnly {
			h = admin(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))

		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			if alias != "" && alias[0] != '/' {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.Info(context.Background(), logger.CompTWire, "tg.wire",
		slog.String("status", "ok"),
		slog.Int("count", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
