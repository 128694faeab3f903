package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/guidebot/core/knowledge"
	"github.com/m3rciful/guidebot/core/logger"
)

type topicRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type subtopicRow struct {
	ID      int64  `db:"id"`
	TopicID int64  `db:"topic_id"`
	Name    string `db:"name"`
	Answer  string `db:"answer"`
}

type keywordRow struct {
	SubtopicID int64  `db:"subtopic_id"`
	Keyword    string `db:"keyword"`
}

// KnowledgeRepository reads and replaces the knowledge base stored in
// Postgres. It implements knowledge.Source.
type KnowledgeRepository struct {
	db *sqlx.DB
}

// NewKnowledgeRepository wraps an open connection pool.
func NewKnowledgeRepository(db *sqlx.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

var _ knowledge.Source = (*KnowledgeRepository)(nil)

// Load reads all topics in their stored order and validates them.
func (r *KnowledgeRepository) Load(ctx context.Context) (*knowledge.Store, error) {
	start := time.Now()
	store, err := r.load(ctx)
	if err != nil {
		logger.Error(ctx, logger.CompKB, "kb.load",
			slog.String("status", "fail"),
			slog.String("source", "postgres"),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	stats := store.Stats()
	logger.Info(ctx, logger.CompKB, "kb.load",
		slog.String("status", "ok"),
		slog.String("source", "postgres"),
		slog.Int("topics", stats.Topics),
		slog.Int("subtopics", stats.Subtopics),
		slog.Duration("duration", logger.Took(start)),
	)
	return store, nil
}

func (r *KnowledgeRepository) load(ctx context.Context) (*knowledge.Store, error) {
	var topics []topicRow
	if err := r.db.SelectContext(ctx, &topics,
		`SELECT id, name FROM topics ORDER BY position, id`); err != nil {
		return nil, fmt.Errorf("select topics: %w", err)
	}
	var subs []subtopicRow
	if err := r.db.SelectContext(ctx, &subs,
		`SELECT id, topic_id, name, answer FROM subtopics ORDER BY topic_id, position, id`); err != nil {
		return nil, fmt.Errorf("select subtopics: %w", err)
	}
	var kws []keywordRow
	if err := r.db.SelectContext(ctx, &kws,
		`SELECT subtopic_id, keyword FROM subtopic_keywords ORDER BY subtopic_id, position`); err != nil {
		return nil, fmt.Errorf("select keywords: %w", err)
	}

	keywords := make(map[int64][]string, len(subs))
	for _, k := range kws {
		keywords[k.SubtopicID] = append(keywords[k.SubtopicID], k.Keyword)
	}
	byTopic := make(map[int64][]knowledge.Subtopic, len(topics))
	for _, s := range subs {
		byTopic[s.TopicID] = append(byTopic[s.TopicID], knowledge.Subtopic{
			Name:     s.Name,
			Keywords: keywords[s.ID],
			Answer:   s.Answer,
		})
	}
	out := make([]knowledge.Topic, 0, len(topics))
	for _, t := range topics {
		out = append(out, knowledge.Topic{Name: t.Name, Subtopics: byTopic[t.ID]})
	}
	return knowledge.New(out)
}

// Replace swaps the stored knowledge base for store in one transaction.
func (r *KnowledgeRepository) Replace(ctx context.Context, store *knowledge.Store) (err error) {
	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"subtopic_keywords", "subtopics", "topics"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertTopic := tx.Rebind(`INSERT INTO topics (name, position) VALUES (?, ?) RETURNING id`)
	insertSub := tx.Rebind(`INSERT INTO subtopics (topic_id, name, answer, position) VALUES (?, ?, ?, ?) RETURNING id`)
	insertKeyword := tx.Rebind(`INSERT INTO subtopic_keywords (subtopic_id, keyword, position) VALUES (?, ?, ?)`)

	for ti, t := range store.Topics() {
		var topicID int64
		if err = tx.QueryRowxContext(ctx, insertTopic, t.Name, ti).Scan(&topicID); err != nil {
			return fmt.Errorf("insert topic %q: %w", t.Name, err)
		}
		for si, s := range t.Subtopics {
			var subID int64
			if err = tx.QueryRowxContext(ctx, insertSub, topicID, s.Name, s.Answer, si).Scan(&subID); err != nil {
				return fmt.Errorf("insert subtopic %q/%q: %w", t.Name, s.Name, err)
			}
			for ki, kw := range s.Keywords {
				if _, err = tx.ExecContext(ctx, insertKeyword, subID, kw, ki); err != nil {
					return fmt.Errorf("insert keyword %q: %w", kw, err)
				}
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	stats := store.Stats()
	logger.Info(ctx, logger.CompDB, "kb.seed",
		slog.String("status", "ok"),
		slog.Int("topics", stats.Topics),
		slog.Int("subtopics", stats.Subtopics),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
