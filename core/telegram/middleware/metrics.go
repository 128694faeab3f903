package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "out_counters"

// Counters describes what a handler emitted for a single update.
type Counters struct {
	Sent     int
	Edited   int
	Keyboard bool
	Answered bool
}

// Messages is the number of successful sends and edits.
func (c Counters) Messages() int { return c.Sent + c.Edited }

type countingContext struct {
	tele.Context
	n *Counters
}

func (m countingContext) markup(opts []any) {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			m.n.Keyboard = m.n.Keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			m.n.Keyboard = m.n.Keyboard || v != nil
		}
	}
}

func (m countingContext) Send(what any, opts ...any) error {
	if err := m.Context.Send(what, opts...); err != nil {
		return err
	}
	m.n.Sent++
	m.markup(opts)
	return nil
}

func (m countingContext) Edit(what any, opts ...any) error {
	if err := m.Context.Edit(what, opts...); err != nil {
		return err
	}
	m.n.Edited++
	m.markup(opts)
	return nil
}

func (m countingContext) Respond(resp ...*tele.CallbackResponse) error {
	if err := m.Context.Respond(resp...); err != nil {
		return err
	}
	m.n.Answered = true
	return nil
}

// MessageMetricsMiddleware counts outbound messages, edits and callback
// answers made by downstream handlers.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &Counters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// CountersFrom returns the counters collected so far, zero when the
// middleware did not run.
func CountersFrom(c tele.Context) Counters {
	if n, ok := c.Get(countersKey).(*Counters); ok && n != nil {
		return *n
	}
	return Counters{}
}
