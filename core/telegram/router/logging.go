package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
	"github.com/m3rciful/guidebot/core/telegram/middleware"
)

func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, "", err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, statusOverride string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	out := middleware.CountersFrom(c)

	status := statusOverride
	if status == "" {
		status = logger.Status(err)
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int("messages", out.Messages()),
		slog.Bool("kb", out.Keyboard),
		slog.Bool("answered", out.Answered),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	logger.Event(ctx, logger.CompTG, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return "TG_" + strings.ToUpper(strings.ReplaceAll(apiErr.Description, " ", "_"))
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
