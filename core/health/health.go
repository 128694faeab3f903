// Package health serves the liveness endpoint polled by hosting platforms.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	"github.com/m3rciful/guidebot/core/logger"
)

// Body is the response of a healthy process.
const Body = "alive"

const shutdownTimeout = 5 * time.Second

// Server wraps a fiber app exposing a single GET route.
type Server struct {
	app  *fiber.App
	addr string
}

// New builds the server from normalized config.
func New(cfg coreconfig.HealthConfig) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "guidebot",
	})
	app.Use(requestLogger)
	app.Get(cfg.Path, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString(Body)
	})
	return &Server{
		app:  app,
		addr: net.JoinHostPort(cfg.Listen, strconv.Itoa(cfg.Port)),
	}
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Addr is the listen address.
func (s *Server) Addr() string { return s.addr }

// Run listens until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		logger.Error(ctx, logger.CompHTTP, "http.listen",
			slog.String("status", "fail"),
			slog.String("listen", s.addr),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Info(ctx, logger.CompHTTP, "http.listen", slog.String("listen", s.addr))

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	err = s.app.ShutdownWithTimeout(shutdownTimeout)
	// Serve may not have picked the listener up yet.
	_ = ln.Close()
	if lerr := <-errCh; lerr != nil && err == nil && !errors.Is(lerr, net.ErrClosed) {
		err = lerr
	}
	logger.Info(context.Background(), logger.CompHTTP, "http.shutdown", slog.String("status", logger.Status(err)))
	return err
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if logger.ShouldSampleDebug() {
		logger.Debug(c.UserContext(), logger.CompHTTP, "http.request",
			slog.String("op", c.Method()+" "+c.Path()),
			slog.Int("http_code", c.Response().StatusCode()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return err
}
