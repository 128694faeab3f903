package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	"github.com/m3rciful/guidebot/core/logger"
	tghelpers "github.com/m3rciful/guidebot/core/telegram/helpers"
	tgsender "github.com/m3rciful/guidebot/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot from opts, wires middlewares, routes and the
// command menu, then serves updates until ctx is done. Cancellation is a
// clean stop and yields nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	bot, err := newBot(ctx, opts.Config)
	if err != nil {
		return err
	}
	if _, longPoll := bot.Poller.(*tele.LongPoller); longPoll && !opts.DisableWebhookCleanup {
		dropWebhook(ctx, bot)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetBaseContext(ctx)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	wire(bot, opts.Middlewares, opts.Routes)
	SetupCommands(bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	serveErr := serve(ctx, bot)

	if opts.OnStop != nil {
		// ctx is already done here
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopHookTimeout)
		defer cancel()
		if err := opts.OnStop(stopCtx, rt); err != nil {
			return err
		}
	}
	if errors.Is(serveErr, context.Canceled) {
		return nil
	}
	return serveErr
}

const stopHookTimeout = 5 * time.Second

func newBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(longPollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
		OnError: onBotError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	attrs := []slog.Attr{slog.Duration("duration", logger.Took(start))}
	switch p := poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
		)
	}
	logger.Info(ctx, logger.CompTG, "mode", attrs...)
	return bot, nil
}

// dropWebhook clears a webhook left over from a previous deployment; the
// Bot API refuses getUpdates while one is set.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, logger.CompTG, "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return
	}
	logger.Info(ctx, logger.CompTG, "delete_webhook", slog.String("status", "ok"))
}

func wire(bot *tele.Bot, mws []Middleware, routes []Route) {
	for _, mw := range mws {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

// serve runs the poller until it stops on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-stopped
		return ctx.Err()
	}
}

func onBotError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, logger.CompTG, "tg.error", slog.String("err", logger.Sanitize(err.Error())))
}
