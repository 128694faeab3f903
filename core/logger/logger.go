package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m3rciful/guidebot/core/buildinfo"
	coreconfig "github.com/m3rciful/guidebot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter *asyncWriter
	errWriter *asyncWriter
	logSinks  []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. Nil until InitLogger runs; all helpers are no-ops before that.
	L *slog.Logger
)

// Component names used across the module.
const (
	CompApp    = "app"
	CompKB     = "kb"
	CompIndex  = "index"
	CompDB     = "db"
	CompMIG    = "db.migrate"
	CompTG     = "tg"
	CompTWire  = "tg.wire"
	CompSender = "tg.sender"
	CompHTTP   = "http"
)

// settings is the logging configuration after defaults are applied.
type settings struct {
	level    slog.Level
	format   logFormat
	keyOrder []string
	profile  string
	sampleN  int
	sampleD  int
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		level:    slog.LevelInfo,
		format:   formatJSON,
		keyOrder: slices.Clone(defaultKeyOrder),
		profile:  "prod",
		sampleN:  1,
		sampleD:  50,
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	if order := splitList(lc.KeysOrder); len(order) > 0 && !(len(order) == 1 && order[0] == "default") {
		s.keyOrder = order
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch n, d := parseRatioSpec(spec); {
		case n == 0 && d == 0:
			s.sampleN, s.sampleD = 0, 0
		case n > 0 && d > 0:
			s.sampleN, s.sampleD = n, d
		}
	}
	return s
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitLogger installs the global structured logger. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		st := resolve(cfg)
		levelVar.Set(st.level)
		debugSampler.Set(st.sampleN, st.sampleD)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		main, errs, closers, err := buildOutputs(cfg)
		if err != nil {
			initErr = err
			return
		}
		logSinks = closers
		logWriter = newAsyncWriter(main, 64<<10)
		if len(errs) > 0 {
			errWriter = newAsyncWriter(errs, 16<<10)
		}

		L = slog.New(newStructuredHandler(handlerConfig{
			level:     &levelVar,
			writer:    logWriter,
			errWriter: errWriter,
			format:    st.format,
			keyOrder:  st.keyOrder,
		}))
		slog.SetDefault(L)
		logStartup(cfg, st)
	})
	return initErr
}

func logStartup(cfg *coreconfig.Config, st settings) {
	attrs := []slog.Attr{
		slog.String("component", CompApp),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", st.profile),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("mode", cfg.Telegram.RunMode),
			slog.String("kb_source", cfg.Knowledge.Source),
			slog.String("backend", cfg.Index.Backend),
		)
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	for _, w := range []*asyncWriter{logWriter, errWriter} {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range logSinks {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildOutputs returns stdout plus rotated file sinks. The errors file only
// receives WARN and above.
func buildOutputs(cfg *coreconfig.Config) (main, errs []io.Writer, closers []io.Closer, err error) {
	main = []io.Writer{os.Stdout}
	if cfg == nil {
		return main, nil, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if dir == "" {
		return main, nil, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, nil, err
	}
	if name := strings.TrimSpace(cfg.Logging.BotFile); name != "" {
		lj := rotated(filepath.Join(dir, name), cfg.Logging)
		main = append(main, lj)
		closers = append(closers, lj)
	}
	if name := strings.TrimSpace(cfg.Logging.ErrorsFile); name != "" {
		lj := rotated(filepath.Join(dir, name), cfg.Logging)
		errs = append(errs, lj)
		closers = append(closers, lj)
	}
	return main, errs, closers, nil
}

func rotated(path string, lc coreconfig.LoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress,
	}
}

// LogEvent writes an event through logg, falling back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component constructs a logger scoped to the provided component attribute.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return L
	}
	return L.With("component", trimmed)
}

// Event logs with component scope resolved automatically.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := FromContext(ctx)
	if logg == nil {
		return
	}
	if c := strings.TrimSpace(component); c != "" {
		logg = logg.With("component", c)
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug event should be logged.
func ShouldSampleDebug() bool {
	if traceOverride {
		return true
	}
	return debugSampler.Allow()
}
