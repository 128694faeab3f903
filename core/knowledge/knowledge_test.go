package knowledge

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
topics:
  - name: Housing
    subtopics:
      - name: Deposit Return
        keywords: [deposit, return]
        answer: Ask for a receipt.
      - name: " Safe Renting "
        answer: Read the contract.
  - name: Medicine
    subtopics:
      - name: Insurance
        answer: Visit the service centre.
`

func TestDecodeKeepsOrderAndTrimsNames(t *testing.T) {
	s, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	topics := s.Topics()
	require.Len(t, topics, 2)
	assert.Equal(t, "Housing", topics[0].Name)
	assert.Equal(t, "Medicine", topics[1].Name)
	assert.Equal(t, "Safe Renting", topics[0].Subtopics[1].Name)

	sub, ok := s.Subtopic("Housing", "Deposit Return")
	require.True(t, ok)
	assert.Equal(t, "Ask for a receipt.", sub.Answer)
	assert.Equal(t, []string{"deposit", "return"}, sub.Keywords)

	assert.Equal(t, Stats{Topics: 2, Subtopics: 3}, s.Stats())
}

func TestNewRejectsInvalidHierarchies(t *testing.T) {
	cases := map[string][]Topic{
		"empty topic":     {{Name: "  "}},
		"duplicate topic": {{Name: "A"}, {Name: "A "}},
		"empty subtopic":  {{Name: "A", Subtopics: []Subtopic{{Name: ""}}}},
		"duplicate sub":   {{Name: "A", Subtopics: []Subtopic{{Name: "x"}, {Name: "x"}}}},
	}
	for name, topics := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(topics)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("topics:\n  - name: A\n    colour: red\n"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDecodeEmptyDocument(t *testing.T) {
	s, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Topics())
}

func TestStoreLookupsMiss(t *testing.T) {
	s, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	_, ok := s.Topic("Unknown")
	assert.False(t, ok)
	_, ok = s.Subtopic("Housing", "Unknown")
	assert.False(t, ok)
	_, ok = s.Subtopic("Unknown", "Deposit Return")
	assert.False(t, ok)

	var nilStore *Store
	_, ok = nilStore.Topic("Housing")
	assert.False(t, ok)
}

func TestTopicsReturnsCopy(t *testing.T) {
	s, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	topics := s.Topics()
	topics[0].Name = "changed"
	_, ok := s.Topic("Housing")
	assert.True(t, ok)
	assert.Equal(t, "Housing", s.Topics()[0].Name)
}

func TestEncodeDecodeFile(t *testing.T) {
	s, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))

	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.Topics(), loaded.Topics())
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.yaml")}.Load(context.Background())
	require.ErrorIs(t, err, fs.ErrNotExist)
}
