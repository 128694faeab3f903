package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/guidebot/core/telegram"
)

type fakeContext struct {
	tele.Context
	cb      *tele.Callback
	text    string
	userID  int64
	values  map[string]any
	answers int
}

func newFake(text string, cb *tele.Callback) *fakeContext {
	return &fakeContext{text: text, cb: cb, userID: 5, values: map[string]any{}}
}

func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Sender() *tele.User       { return &tele.User{ID: f.userID} }
func (f *fakeContext) Chat() *tele.Chat         { return nil }
func (f *fakeContext) Get(key string) any       { return f.values[key] }
func (f *fakeContext) Set(key string, v any)    { f.values[key] = v }

func (f *fakeContext) Update() tele.Update {
	return tele.Update{ID: 1, Callback: f.cb, Message: &tele.Message{Text: f.text}}
}

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.answers++
	return nil
}

func TestCallbackRouteRespondsOnceAfterSilentHandler(t *testing.T) {
	reg := tg.NewRegistry()
	calls := 0
	require.NoError(t, reg.RegisterCallback("theme", func(tele.Context) error {
		calls++
		return nil
	}))
	route := CallbackRoute(reg)
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	c := newFake("", &tele.Callback{Data: "theme:abc"})
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.answers)
}

func TestCallbackRouteSwallowsSecondAnswer(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("sub", func(c tele.Context) error {
		_ = c.RespondText("first")
		_ = c.RespondAlert("second")
		return c.Respond()
	}))
	c := newFake("", &tele.Callback{Data: "sub:abc"})
	require.NoError(t, CallbackRoute(reg).Handler(c))
	assert.Equal(t, 1, c.answers)
}

func TestCallbackRouteAnswersOnHandlerError(t *testing.T) {
	reg := tg.NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.RegisterCallback("theme", func(tele.Context) error { return boom }))
	c := newFake("", &tele.Callback{Data: "theme:x"})
	require.ErrorIs(t, CallbackRoute(reg).Handler(c), boom)
	assert.Equal(t, 1, c.answers)
}

func TestTextRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	var hits []string
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error {
			hits = append(hits, name)
			return nil
		}
	}
	require.NoError(t, reg.RegisterCommand("/start", tg.Command{Handler: record("start"), Description: "d", Aliases: []string{"/menu"}}))
	require.NoError(t, reg.RegisterCommand("/index", tg.Command{Handler: record("index"), Description: "d", AdminOnly: true}))

	routes := TextRoutes(reg, TextOptions{UnknownText: record("unknown")})
	require.Len(t, routes, 1)
	h := routes[0].Handler

	for _, text := range []string{"/menu now", "/index", "hello"} {
		require.NoError(t, h(newFake(text, nil)))
	}
	assert.Equal(t, []string{"start", "unknown", "unknown"}, hits)

	reg.SetTextFallback(record("fallback"))
	require.NoError(t, h(newFake("hello", nil)))
	assert.Equal(t, "fallback", hits[len(hits)-1])
}

func TestCommandRoutesIncludeAliasesAndGuardAdmin(t *testing.T) {
	reg := tg.NewRegistry()
	hits := 0
	inc := func(tele.Context) error { hits++; return nil }
	require.NoError(t, reg.RegisterCommand("/start", tg.Command{Handler: inc, Description: "d", Aliases: []string{"menu"}}))
	require.NoError(t, reg.RegisterCommand("/index", tg.Command{Handler: inc, Description: "d", AdminOnly: true}))

	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       5,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	byEndpoint := map[any]tele.HandlerFunc{}
	for _, r := range routes {
		byEndpoint[r.Endpoint] = r.Handler
	}
	require.Len(t, byEndpoint, 3)
	require.Contains(t, byEndpoint, "/menu")

	require.NoError(t, byEndpoint["/index"](newFake("/index", nil)))
	stranger := newFake("/index", nil)
	stranger.userID = 6
	require.NoError(t, byEndpoint["/index"](stranger))
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, rejected)
}

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "TG_BAD_REQUEST", deriveErrorCode(&tele.Error{Description: "Bad Request"}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "start", normalizeHandlerName("/Start"))
	assert.Equal(t, "back_to_menu", normalizeHandlerName("back to menu"))
}
