package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	"github.com/m3rciful/guidebot/core/health"
	"github.com/m3rciful/guidebot/core/logger"
	coretelegram "github.com/m3rciful/guidebot/core/telegram"
)

const (
	// ConfigEnvVar names the environment variable holding the YAML path.
	ConfigEnvVar = "CONFIG_PATH"
	// DefaultConfigPath is used when neither a flag nor CONFIG_PATH is set.
	DefaultConfigPath = "configs/config.yaml"
)

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe which services run side by side.
type Options struct {
	Config *coreconfig.Config
	App    TelegramApp

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	RunHealth      func(ctx context.Context) error
}

// ConfigPath resolves the config file: explicit flag, then CONFIG_PATH,
// then the default.
func ConfigPath(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigEnvVar)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Run starts the Telegram runtime and the liveness endpoint and blocks until
// SIGINT/SIGTERM or the first failure.
func Run(opts Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return RunContext(ctx, opts)
}

// RunContext is Run with a caller-supplied lifetime. A failing service
// cancels the others; cancellation of ctx is a clean stop.
func RunContext(ctx context.Context, opts Options) error {
	if opts.Config == nil {
		return fmt.Errorf("cmd: Config is required")
	}
	if opts.App == nil {
		return fmt.Errorf("cmd: App is required")
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
		}
	}()

	runOpts, err := opts.App.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	startedAt := time.Now()
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, logger.CompApp, "ready",
			slog.String("status", "ok"),
			slog.Duration("duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, logger.CompApp, "shutdown", slog.String("status", "ok"))
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	runTelegram := opts.RunTelegram
	if runTelegram == nil {
		runTelegram = coretelegram.RunTelegram
	}
	runHealth := opts.RunHealth
	if runHealth == nil && !opts.Config.Health.Disabled {
		runHealth = health.New(opts.Config.Health).Run
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runTelegram(gctx, runOpts)
	})
	if runHealth != nil {
		g.Go(func() error {
			return runHealth(gctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(context.Background(), logger.CompApp, "stopped",
			slog.String("status", "fail"),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return err
	}
	return nil
}
