// Package index derives short callback tokens for topics and subtopics and
// resolves them back. Tokens are content-derived so a rebuilt index from an
// unchanged knowledge base reproduces the persisted one.
package index

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/m3rciful/guidebot/core/knowledge"
)

// TokenLength is the number of hex characters kept from the digest.
const TokenLength = 8

// TopicToken returns the token of a topic.
func TopicToken(topic string) string {
	return token(topic)
}

// SubtopicToken returns the token of a (topic, subtopic) pair. The input is
// the plain concatenation of both names.
func SubtopicToken(topic, subtopic string) string {
	return token(topic + subtopic)
}

func token(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:TokenLength]
}

// Ref points at a topic, or at a subtopic when Subtopic is set.
type Ref struct {
	Topic    string
	Subtopic string
}

// IsTopic reports whether the ref points at a topic.
func (r Ref) IsTopic() bool { return r.Subtopic == "" }

// Index maps tokens to refs. The zero value is an empty index; an Index is
// never mutated once built or loaded.
type Index struct {
	refs map[string]Ref
}

// Build derives tokens for every topic and every pair of the store. Entries
// are written topics first, then pairs, in store order; a colliding token
// keeps the last entry written.
func Build(store *knowledge.Store) *Index {
	topics := store.Topics()
	refs := make(map[string]Ref, len(topics)*4)
	for _, t := range topics {
		refs[TopicToken(t.Name)] = Ref{Topic: t.Name}
	}
	for _, t := range topics {
		for _, s := range t.Subtopics {
			refs[SubtopicToken(t.Name, s.Name)] = Ref{Topic: t.Name, Subtopic: s.Name}
		}
	}
	return &Index{refs: refs}
}

// FromEntries wraps an already decoded token map. The map is copied.
func FromEntries(entries map[string]Ref) *Index {
	refs := make(map[string]Ref, len(entries))
	for k, v := range entries {
		refs[k] = v
	}
	return &Index{refs: refs}
}

// Resolve looks a token up. A miss is an ordinary outcome.
func (i *Index) Resolve(token string) (Ref, bool) {
	if i == nil {
		return Ref{}, false
	}
	r, ok := i.refs[token]
	return r, ok
}

// Len returns the number of tokens.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.refs)
}

// Entries returns a copy of the token map.
func (i *Index) Entries() map[string]Ref {
	out := make(map[string]Ref, i.Len())
	if i == nil {
		return out
	}
	for k, v := range i.refs {
		out[k] = v
	}
	return out
}

// Covers reports whether every token that Build(store) produces is present
// with the same ref. Colliding names resolve the way Build resolves them, so
// an index persisted from an unchanged store always covers it. A loaded
// index that does not cover the current store is stale.
func (i *Index) Covers(store *knowledge.Store) bool {
	for tok, want := range Build(store).refs {
		if got, ok := i.Resolve(tok); !ok || got != want {
			return false
		}
	}
	return true
}
