package index

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes a topic ref as a string and a subtopic ref as a
// two-element array.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.IsTopic() {
		return json.Marshal(r.Topic)
	}
	return json.Marshal([2]string{r.Topic, r.Subtopic})
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty ref")
	}
	switch data[0] {
	case '"':
		var topic string
		if err := json.Unmarshal(data, &topic); err != nil {
			return err
		}
		if topic == "" {
			return fmt.Errorf("empty topic name")
		}
		*r = Ref{Topic: topic}
		return nil
	case '[':
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 || pair[0] == "" || pair[1] == "" {
			return fmt.Errorf("subtopic ref must be a [topic, subtopic] pair, got %d elements", len(pair))
		}
		*r = Ref{Topic: pair[0], Subtopic: pair[1]}
		return nil
	}
	return fmt.Errorf("unexpected ref encoding %q", truncate(data, 32))
}

func encodeDocument(idx *Index) ([]byte, error) {
	return json.MarshalIndent(idx.Entries(), "", "  ")
}

func decodeDocument(data []byte) (*Index, error) {
	var entries map[string]Ref
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: document is null", ErrMalformed)
	}
	for tok := range entries {
		if len(tok) != TokenLength {
			return nil, fmt.Errorf("%w: token %q has length %d", ErrMalformed, tok, len(tok))
		}
	}
	return FromEntries(entries), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
