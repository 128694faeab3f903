package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/guidebot/core/logger"
)

type document struct {
	Topics []Topic `yaml:"topics"`
}

// Decode parses a YAML knowledge document.
func Decode(r io.Reader) (*Store, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(doc.Topics)
}

// Encode writes the store as a YAML knowledge document.
func Encode(w io.Writer, s *Store) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Topics: s.Topics()}); err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}
	return enc.Close()
}

// FileSource loads the knowledge base from a YAML file.
type FileSource struct {
	Path string
}

// Load reads and validates the file.
func (f FileSource) Load(ctx context.Context) (*Store, error) {
	start := time.Now()
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge file: %w", err)
	}
	defer file.Close()

	store, err := Decode(file)
	if err != nil {
		logger.Error(ctx, logger.CompKB, "kb.load",
			slog.String("status", "fail"),
			slog.String("source", "file"),
			slog.String("path", f.Path),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("load %s: %w", f.Path, err)
	}
	stats := store.Stats()
	logger.Info(ctx, logger.CompKB, "kb.load",
		slog.String("status", "ok"),
		slog.String("source", "file"),
		slog.String("path", f.Path),
		slog.Int("topics", stats.Topics),
		slog.Int("subtopics", stats.Subtopics),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return store, nil
}
