// Package knowledge holds the immutable Topic → Subtopic → Answer hierarchy
// presented by the menu.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks knowledge documents that fail validation.
var ErrInvalid = errors.New("knowledge: invalid document")

// Subtopic is a leaf entry of a Topic.
type Subtopic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords,omitempty"`
	Answer   string   `yaml:"answer"`
}

// Topic is a top-level menu category.
type Topic struct {
	Name      string     `yaml:"name"`
	Subtopics []Subtopic `yaml:"subtopics"`
}

// Source loads a Store from some backing storage.
type Source interface {
	Load(ctx context.Context) (*Store, error)
}

// Store is a validated, read-only knowledge hierarchy. It is safe for
// concurrent use because nothing mutates it after New returns.
type Store struct {
	topics  []Topic
	byTopic map[string]int
	bySub   map[string]map[string]int
}

// New validates topics and builds a Store. Names are trimmed; empty names
// and duplicates are rejected.
func New(topics []Topic) (*Store, error) {
	s := &Store{
		topics:  make([]Topic, 0, len(topics)),
		byTopic: make(map[string]int, len(topics)),
		bySub:   make(map[string]map[string]int, len(topics)),
	}
	for i, t := range topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: topic #%d has an empty name", ErrInvalid, i+1)
		}
		if _, dup := s.byTopic[name]; dup {
			return nil, fmt.Errorf("%w: duplicate topic %q", ErrInvalid, name)
		}
		subs := make([]Subtopic, 0, len(t.Subtopics))
		index := make(map[string]int, len(t.Subtopics))
		for j, st := range t.Subtopics {
			subName := strings.TrimSpace(st.Name)
			if subName == "" {
				return nil, fmt.Errorf("%w: subtopic #%d of %q has an empty name", ErrInvalid, j+1, name)
			}
			if _, dup := index[subName]; dup {
				return nil, fmt.Errorf("%w: duplicate subtopic %q in topic %q", ErrInvalid, subName, name)
			}
			index[subName] = len(subs)
			subs = append(subs, Subtopic{
				Name:     subName,
				Keywords: append([]string(nil), st.Keywords...),
				Answer:   st.Answer,
			})
		}
		s.byTopic[name] = len(s.topics)
		s.bySub[name] = index
		s.topics = append(s.topics, Topic{Name: name, Subtopics: subs})
	}
	return s, nil
}

// Topics returns the topics in source order. The returned slice is a copy.
func (s *Store) Topics() []Topic {
	if s == nil {
		return nil
	}
	out := make([]Topic, len(s.topics))
	copy(out, s.topics)
	return out
}

// Topic looks a topic up by name.
func (s *Store) Topic(name string) (Topic, bool) {
	if s == nil {
		return Topic{}, false
	}
	i, ok := s.byTopic[name]
	if !ok {
		return Topic{}, false
	}
	return s.topics[i], true
}

// Subtopic looks a subtopic up by its topic and own name.
func (s *Store) Subtopic(topic, name string) (Subtopic, bool) {
	if s == nil {
		return Subtopic{}, false
	}
	ti, ok := s.byTopic[topic]
	if !ok {
		return Subtopic{}, false
	}
	si, ok := s.bySub[topic][name]
	if !ok {
		return Subtopic{}, false
	}
	return s.topics[ti].Subtopics[si], true
}

// Stats summarises the store size.
type Stats struct {
	Topics    int
	Subtopics int
}

// Stats reports how many topics and subtopics the store holds.
func (s *Store) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	st := Stats{Topics: len(s.topics)}
	for _, t := range s.topics {
		st.Subtopics += len(t.Subtopics)
	}
	return st
}
