package menu

import "strings"

// Callback payload grammar.
const (
	PrefixTopic    = "theme:"
	PrefixSubtopic = "sub:"
	PayloadBack    = "back_to_menu"
)

// ActionKind classifies an inbound callback payload.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionTopic
	ActionSubtopic
	ActionBack
)

func (k ActionKind) String() string {
	switch k {
	case ActionTopic:
		return "topic"
	case ActionSubtopic:
		return "subtopic"
	case ActionBack:
		return "back"
	}
	return "unknown"
}

// Action is a parsed callback payload.
type Action struct {
	Kind  ActionKind
	Token string
}

// ParseAction parses payload. Prefixed payloads with an empty token are
// unknown.
func ParseAction(payload string) Action {
	switch {
	case payload == PayloadBack:
		return Action{Kind: ActionBack}
	case strings.HasPrefix(payload, PrefixTopic):
		if tok := payload[len(PrefixTopic):]; tok != "" {
			return Action{Kind: ActionTopic, Token: tok}
		}
	case strings.HasPrefix(payload, PrefixSubtopic):
		if tok := payload[len(PrefixSubtopic):]; tok != "" {
			return Action{Kind: ActionSubtopic, Token: tok}
		}
	}
	return Action{Kind: ActionUnknown}
}

// TopicPayload builds the payload of a topic button.
func TopicPayload(token string) string { return PrefixTopic + token }

// SubtopicPayload builds the payload of a subtopic button.
func SubtopicPayload(token string) string { return PrefixSubtopic + token }
