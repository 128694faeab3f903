package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/guidebot/core/config"
)

func nop(tele.Context) error { return nil }

func TestRegisterCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", Command{Handler: nop, Description: "Open", Aliases: []string{"/menu"}}))
	require.NoError(t, reg.RegisterCommand("/index", Command{Handler: nop, Description: "Report", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/about", Command{Handler: nop, Description: "About", Hidden: true}))

	require.ErrorIs(t, reg.RegisterCommand("/start", Command{Handler: nop, Description: "again"}), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCommand("/menu", Command{Handler: nop, Description: "alias taken"}), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCommand("/home", Command{Handler: nop, Description: "x", Aliases: []string{"start"}}), ErrDuplicate)
	require.ErrorIs(t, reg.RegisterCommand("help", Command{Handler: nop, Description: "no slash"}), ErrInvalidRegistration)
	require.ErrorIs(t, reg.RegisterCommand("/x", Command{Description: "no handler"}), ErrInvalidRegistration)

	assert.Equal(t, []tele.Command{{Text: "start", Description: "Open"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 3)

	key, _, ok := reg.LookupCommand("menu")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	key, _, ok = reg.LookupCommand(" /start ")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	_, _, ok = reg.LookupCommand("/nope")
	assert.False(t, ok)
}

func TestRegisterCallback(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("theme", nop))
	require.ErrorIs(t, reg.RegisterCallback("theme", nop), ErrDuplicate)
	require.Error(t, reg.RegisterCallback("", nop))

	_, ok := reg.GetCallback("theme")
	assert.True(t, ok)
	_, ok = reg.GetCallback("sub")
	assert.False(t, ok)
	assert.Equal(t, []string{"theme"}, reg.ListCallbacks())
	assert.NotNil(t, reg.CallbackNotFound())
}

func TestBuildPoller(t *testing.T) {
	lp, ok := BuildPoller(PollerOptions{}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)

	lp, ok = BuildPoller(PollerOptions{RunMode: "longpoll", LongPollTimeoutSeconds: 30}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, lp.Timeout)

	wh, ok := BuildPoller(PollerOptions{
		RunMode: "WEBHOOK",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.org/hook"},
	}).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.org/hook", wh.Endpoint.PublicURL)
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		var out []string
		for _, m := range mws {
			out = append(out, m.Name)
		}
		return out
	}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 300}}
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names(DefaultMiddlewares(cfg, nil)))
}
