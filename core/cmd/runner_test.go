package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	coretelegram "github.com/m3rciful/guidebot/core/telegram"
)

type stubApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (s stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return s.opts, s.err }

func noShutdown() error { return nil }

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	assert.Equal(t, DefaultConfigPath, ConfigPath(""))

	t.Setenv(ConfigEnvVar, "/etc/guide.yaml")
	assert.Equal(t, "/etc/guide.yaml", ConfigPath(" "))
	assert.Equal(t, "local.yaml", ConfigPath("local.yaml"))
}

func TestRunContextStopsCleanlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	healthStopped := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- RunContext(ctx, Options{
			Config:         &coreconfig.Config{},
			App:            stubApp{},
			ShutdownLogger: noShutdown,
			RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
				assert.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
				<-ctx.Done()
				return opts.OnStop(context.Background(), coretelegram.Runtime{})
			},
			RunHealth: func(ctx context.Context) error {
				<-ctx.Done()
				close(healthStopped)
				return nil
			},
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	<-healthStopped
}

func TestRunContextFailureCancelsSiblings(t *testing.T) {
	boom := errors.New("listen: address in use")
	var telegramCancelled bool

	err := RunContext(context.Background(), Options{
		Config:         &coreconfig.Config{},
		App:            stubApp{},
		ShutdownLogger: noShutdown,
		RunTelegram: func(ctx context.Context, _ coretelegram.RunOptions) error {
			<-ctx.Done()
			telegramCancelled = true
			return nil
		},
		RunHealth: func(context.Context) error { return boom },
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, telegramCancelled)
}

func TestRunContextChainsLifecycleHooks(t *testing.T) {
	var order []string
	app := stubApp{opts: coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { order = append(order, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { order = append(order, "stop"); return nil },
	}}

	err := RunContext(context.Background(), Options{
		Config:         &coreconfig.Config{Health: coreconfig.HealthConfig{Disabled: true}},
		App:            app,
		ShutdownLogger: noShutdown,
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "stop"}, order)
}

func TestRunContextValidatesOptions(t *testing.T) {
	require.Error(t, RunContext(context.Background(), Options{App: stubApp{}}))
	require.Error(t, RunContext(context.Background(), Options{Config: &coreconfig.Config{}}))

	boom := errors.New("no registry")
	err := RunContext(context.Background(), Options{
		Config:         &coreconfig.Config{},
		App:            stubApp{err: boom},
		ShutdownLogger: noShutdown,
	})
	require.ErrorIs(t, err, boom)
}
