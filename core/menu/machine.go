// Package menu implements the stateless navigation over the knowledge base.
// Every transition is computed from the callback payload alone, so no chat
// state is kept between updates.
package menu

import (
	"strings"

	"github.com/m3rciful/guidebot/core/index"
	"github.com/m3rciful/guidebot/core/knowledge"
)

// View names the screen a rendering belongs to.
type View string

const (
	ViewRoot   View = "root"
	ViewTopic  View = "topic"
	ViewAnswer View = "answer"
)

// Button is one inline keyboard button.
type Button struct {
	Label   string
	Payload string
}

// Screen is a rendering: one or more messages delivered in order, with the
// keyboard attached to the last one.
type Screen struct {
	View     View
	Messages []string
	Keyboard [][]Button
}

// OutcomeKind tells the transport how to deliver an Outcome.
type OutcomeKind int

const (
	// OutcomeAck answers the callback silently and changes nothing.
	OutcomeAck OutcomeKind = iota
	// OutcomeRender replaces the current screen.
	OutcomeRender
	// OutcomeNotice shows a transient notice and keeps the current screen.
	OutcomeNotice
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRender:
		return "render"
	case OutcomeNotice:
		return "notice"
	}
	return "ack"
}

// Outcome is the result of handling one action.
type Outcome struct {
	Kind   OutcomeKind
	Action Action
	Screen Screen
	Notice string
}

// Texts are the fixed strings shown around the knowledge content.
type Texts struct {
	Greeting    string `yaml:"greeting"`
	RootPrompt  string `yaml:"root_prompt"`
	TopicPrompt string `yaml:"topic_prompt"` // %s is the topic name
	Back        string `yaml:"back"`
	Home        string `yaml:"home"`
	NotFound    string `yaml:"not_found"`
	EmptyAnswer string `yaml:"empty_answer"`
	StartHint   string `yaml:"start_hint"`
}

// DefaultTexts returns the built-in strings.
func DefaultTexts() Texts {
	return Texts{
		Greeting:    "Hi! Choose a topic:",
		RootPrompt:  "Choose a topic:",
		TopicPrompt: "Topic: %s\nChoose a question:",
		Back:        "🔙 Back",
		Home:        "🏠 Menu",
		NotFound:    "Answer not found.",
		EmptyAnswer: "…",
		StartHint:   "Send /start to open the menu.",
	}
}

// WithDefaults fills empty fields from DefaultTexts.
func (t Texts) WithDefaults() Texts {
	d := DefaultTexts()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.Greeting, d.Greeting)
	fill(&t.RootPrompt, d.RootPrompt)
	fill(&t.TopicPrompt, d.TopicPrompt)
	fill(&t.Back, d.Back)
	fill(&t.Home, d.Home)
	fill(&t.NotFound, d.NotFound)
	fill(&t.EmptyAnswer, d.EmptyAnswer)
	fill(&t.StartHint, d.StartHint)
	return t
}

// Machine computes renderings. It only reads the store and index it was
// built with and is safe for concurrent use.
type Machine struct {
	store     *knowledge.Store
	idx       *index.Index
	texts     Texts
	chunkSize int
}

// Option customises a Machine.
type Option func(*Machine)

// WithTexts overrides the UI strings; empty fields keep their defaults.
func WithTexts(t Texts) Option {
	return func(m *Machine) { m.texts = t.WithDefaults() }
}

// WithChunkSize overrides the answer chunk size.
func WithChunkSize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// New builds a Machine over an initialised store and index.
func New(store *knowledge.Store, idx *index.Index, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		idx:       idx,
		texts:     DefaultTexts(),
		chunkSize: ChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Texts returns the strings in use.
func (m *Machine) Texts() Texts { return m.texts }

// Start renders the root menu for the entry command.
func (m *Machine) Start() Screen {
	return m.root(m.texts.Greeting)
}

// Handle computes the outcome of a callback payload.
func (m *Machine) Handle(payload string) Outcome {
	act := ParseAction(payload)
	switch act.Kind {
	case ActionBack:
		return Outcome{Kind: OutcomeRender, Action: act, Screen: m.root(m.texts.RootPrompt)}
	case ActionTopic:
		if s, ok := m.topic(act.Token); ok {
			return Outcome{Kind: OutcomeRender, Action: act, Screen: s}
		}
		return Outcome{Kind: OutcomeNotice, Action: act, Notice: m.texts.NotFound}
	case ActionSubtopic:
		if s, ok := m.answer(act.Token); ok {
			return Outcome{Kind: OutcomeRender, Action: act, Screen: s}
		}
		return Outcome{Kind: OutcomeNotice, Action: act, Notice: m.texts.NotFound}
	}
	return Outcome{Kind: OutcomeAck, Action: act}
}

func (m *Machine) root(prompt string) Screen {
	topics := m.store.Topics()
	kb := make([][]Button, 0, len(topics))
	for _, t := range topics {
		kb = append(kb, []Button{{Label: t.Name, Payload: TopicPayload(index.TopicToken(t.Name))}})
	}
	return Screen{View: ViewRoot, Messages: []string{prompt}, Keyboard: kb}
}

func (m *Machine) topic(token string) (Screen, bool) {
	ref, ok := m.idx.Resolve(token)
	if !ok || !ref.IsTopic() {
		return Screen{}, false
	}
	t, ok := m.store.Topic(ref.Topic)
	if !ok {
		return Screen{}, false
	}
	kb := make([][]Button, 0, len(t.Subtopics)+1)
	for _, s := range t.Subtopics {
		kb = append(kb, []Button{{Label: s.Name, Payload: SubtopicPayload(index.SubtopicToken(t.Name, s.Name))}})
	}
	kb = append(kb, []Button{{Label: m.texts.Back, Payload: PayloadBack}})
	// only the first %s is a placeholder; any other % is literal text
	prompt := strings.Replace(m.texts.TopicPrompt, "%s", t.Name, 1)
	return Screen{View: ViewTopic, Messages: []string{prompt}, Keyboard: kb}, true
}

func (m *Machine) answer(token string) (Screen, bool) {
	ref, ok := m.idx.Resolve(token)
	if !ok || ref.IsTopic() {
		return Screen{}, false
	}
	s, ok := m.store.Subtopic(ref.Topic, ref.Subtopic)
	if !ok {
		return Screen{}, false
	}
	msgs := Split(s.Answer, m.chunkSize)
	if len(msgs) == 0 {
		msgs = []string{m.texts.EmptyAnswer}
	}
	return Screen{
		View:     ViewAnswer,
		Messages: msgs,
		Keyboard: [][]Button{{{Label: m.texts.Home, Payload: PayloadBack}}},
	}, true
}
