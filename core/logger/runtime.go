package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type metaKey struct{}

// meta is the per-update correlation data carried through a request context.
type meta struct {
	log      *slog.Logger
	rid      string
	handler  string
	updateID int
	userID   int64
	chatID   int64
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, edit func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithLogger stores log in ctx; FromContext returns it instead of the global logger.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.log = log })
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if m := metaFrom(ctx); m.log != nil {
		return m.log
	}
	return L
}

func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta records the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }
func UserIDFrom(ctx context.Context) int64   { return metaFrom(ctx).userID }
func ChatIDFrom(ctx context.Context) int64   { return metaFrom(ctx).chatID }
func UpdateIDFrom(ctx context.Context) int   { return metaFrom(ctx).updateID }

var botTokenRe = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`)

// Sanitize drops control and format runes (tab and newline survive) and
// masks bot tokens embedded in API URLs.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
	return botTokenRe.ReplaceAllString(s, "bot<redacted>")
}

// SanitizeLimit is Sanitize truncated to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	s = Sanitize(s)
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// BuildRID formats a correlation id as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return strconv.Itoa(updateID) + ":" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// CompactRID rewrites a three-part numeric rid into dotted base36, e.g.
// "10:11:12" becomes "a.b.c". Anything else is returned trimmed but unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
