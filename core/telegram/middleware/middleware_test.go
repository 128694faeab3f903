package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	upd    tele.Update
	user   *tele.User
	values map[string]any
}

func newStub(userID int64, upd tele.Update) *stubContext {
	var u *tele.User
	if userID != 0 {
		u = &tele.User{ID: userID}
	}
	return &stubContext{upd: upd, user: u, values: map[string]any{}}
}

func (s *stubContext) Update() tele.Update      { return s.upd }
func (s *stubContext) Sender() *tele.User       { return s.user }
func (s *stubContext) Chat() *tele.Chat         { return nil }
func (s *stubContext) Callback() *tele.Callback { return s.upd.Callback }
func (s *stubContext) Text() string             { return "" }
func (s *stubContext) Get(key string) any       { return s.values[key] }
func (s *stubContext) Set(key string, v any)    { s.values[key] = v }
func (s *stubContext) Send(any, ...any) error   { return nil }
func (s *stubContext) Edit(any, ...any) error   { return nil }

func (s *stubContext) Respond(...*tele.CallbackResponse) error { return nil }

func counting(n *int) tele.HandlerFunc {
	return func(tele.Context) error {
		*n++
		return nil
	}
}

func TestAdminOnly(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 10, OnReject: counting(&rejected)})
	passed := 0
	h := mw(counting(&passed))

	require.NoError(t, h(newStub(10, tele.Update{})))
	require.NoError(t, h(newStub(11, tele.Update{})))
	require.NoError(t, h(newStub(0, tele.Update{})))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 2, rejected)

	nobody := AdminOnlyMiddleware(AdminOptions{})(counting(&passed))
	require.NoError(t, nobody(newStub(10, tele.Update{})))
	assert.Equal(t, 1, passed)
}

func TestRateLimitPerUser(t *testing.T) {
	limited := 0
	passed := 0
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: counting(&limited),
	})(counting(&passed))

	msg := tele.Update{Message: &tele.Message{}}
	require.NoError(t, h(newStub(1, msg)))
	require.NoError(t, h(newStub(1, msg)))
	require.NoError(t, h(newStub(2, msg)))
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExclusions(t *testing.T) {
	passed := 0
	h := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"callback": {}},
	})(counting(&passed))

	cb := tele.Update{Callback: &tele.Callback{}}
	for i := 0; i < 3; i++ {
		require.NoError(t, h(newStub(1, cb)))
	}
	assert.Equal(t, 3, passed)
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "inline_query", UpdateKind(tele.Update{Query: &tele.Query{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newStub(1, tele.Update{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMetricsCountOutput(t *testing.T) {
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Respond(); err != nil {
			return err
		}
		if err := c.Edit("a"); err != nil {
			return err
		}
		return c.Send("b", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
	})
	stub := newStub(1, tele.Update{})
	require.NoError(t, h(stub))

	got := CountersFrom(stub)
	assert.Equal(t, Counters{Sent: 1, Edited: 1, Keyboard: true, Answered: true}, got)
	assert.Equal(t, 2, got.Messages())
	assert.Equal(t, Counters{}, CountersFrom(newStub(1, tele.Update{})))
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	stub := newStub(3, tele.Update{ID: 77, Message: &tele.Message{}})
	h := LoggerMiddleware(func(tele.Context) error { return nil })
	require.NoError(t, h(stub))
	assert.NotEmpty(t, stub.values["rid"])
}
