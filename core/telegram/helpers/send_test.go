package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type sent struct {
	text string
	edit bool
	kb   bool
}

type recorder struct {
	tele.Context
	values  map[string]any
	out     []sent
	editErr error
	at      []time.Time
}

func newRecorder() *recorder { return &recorder{values: map[string]any{}} }

func (r *recorder) Update() tele.Update   { return tele.Update{ID: 9} }
func (r *recorder) Chat() *tele.Chat      { return &tele.Chat{ID: 1} }
func (r *recorder) Sender() *tele.User    { return &tele.User{ID: 2} }
func (r *recorder) Get(key string) any    { return r.values[key] }
func (r *recorder) Set(key string, v any) { r.values[key] = v }

func (r *recorder) push(what any, opts []any, edit bool) {
	s := sent{text: what.(string), edit: edit}
	if so, ok := opts[0].(*tele.SendOptions); ok && so.ReplyMarkup != nil {
		s.kb = true
	}
	r.out = append(r.out, s)
	r.at = append(r.at, time.Now())
}

func (r *recorder) Send(what any, opts ...any) error {
	r.push(what, opts, false)
	return nil
}

func (r *recorder) Edit(what any, opts ...any) error {
	if r.editErr != nil {
		return r.editErr
	}
	r.push(what, opts, true)
	return nil
}

func TestDeliverOrdersPartsAndAttachesMarkupLast(t *testing.T) {
	r := newRecorder()
	kb := &tele.ReplyMarkup{}
	require.NoError(t, Deliver(r, []string{"a", "b", "c"}, kb, DeliverOptions{Edit: true, Pause: 5 * time.Millisecond}))

	assert.Equal(t, []sent{
		{text: "a", edit: true},
		{text: "b"},
		{text: "c", kb: true},
	}, r.out)
	assert.GreaterOrEqual(t, r.at[2].Sub(r.at[0]), 10*time.Millisecond)
}

func TestDeliverTreatsNotModifiedAsSuccess(t *testing.T) {
	r := newRecorder()
	r.editErr = errors.New("telegram: Bad Request: message is not modified (400)")
	require.NoError(t, Deliver(r, []string{"same"}, nil, DeliverOptions{Edit: true}))
	assert.Empty(t, r.out)
}

func TestDeliverFallsBackToSendWhenEditImpossible(t *testing.T) {
	r := newRecorder()
	r.editErr = tele.ErrBadContext
	require.NoError(t, Deliver(r, []string{"x"}, nil, DeliverOptions{Edit: true}))
	assert.Equal(t, []sent{{text: "x"}}, r.out)
}

func TestDeliverStopsWhenBaseContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	t.Cleanup(func() { SetBaseContext(nil) })
	cancel()

	r := newRecorder()
	err := Deliver(r, []string{"1", "2"}, nil, DeliverOptions{Pause: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []sent{{text: "1"}}, r.out)
}

func TestBuildContextIsCached(t *testing.T) {
	r := newRecorder()
	first := BuildContext(r)
	assert.Equal(t, first, BuildContext(r))

	tagged := WithHandler(r, "start")
	got, ok := ContextFrom(r)
	require.True(t, ok)
	assert.Equal(t, tagged, got)
}
