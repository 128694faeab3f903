package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/guidebot/core/knowledge"
)

// sqliteSchema mirrors migrations/0001_knowledge.up.sql in SQLite dialect.
const sqliteSchema = `
CREATE TABLE topics (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    name     TEXT    NOT NULL UNIQUE,
    position INTEGER NOT NULL
);
CREATE TABLE subtopics (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics (id) ON DELETE CASCADE,
    name     TEXT    NOT NULL,
    answer   TEXT    NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    UNIQUE (topic_id, name)
);
CREATE TABLE subtopic_keywords (
    subtopic_id INTEGER NOT NULL REFERENCES subtopics (id) ON DELETE CASCADE,
    keyword     TEXT    NOT NULL,
    position    INTEGER NOT NULL,
    PRIMARY KEY (subtopic_id, position)
);`

func newTestRepo(t *testing.T) (*KnowledgeRepository, *sqlx.DB) {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own empty in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return NewKnowledgeRepository(db), db
}

func sampleStore(t *testing.T) *knowledge.Store {
	t.Helper()
	s, err := knowledge.New([]knowledge.Topic{
		{Name: "Жильё", Subtopics: []knowledge.Subtopic{
			{Name: "Аренда", Keywords: []string{"аренда", "квартира"}, Answer: "Договор обязателен."},
			{Name: "Залог", Answer: "Требуйте расписку."},
		}},
		{Name: "Медицина", Subtopics: []knowledge.Subtopic{
			{Name: "Страховка", Keywords: []string{"полис"}, Answer: "Оформите полис."},
		}},
		{Name: "Пусто"},
	})
	require.NoError(t, err)
	return s
}

func TestReplaceThenLoadPreservesOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	want := sampleStore(t)

	require.NoError(t, repo.Replace(ctx, want))
	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Topics(), got.Topics())
}

func TestReplaceOverwritesPreviousContent(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Replace(ctx, sampleStore(t)))

	next, err := knowledge.New([]knowledge.Topic{
		{Name: "Транспорт", Subtopics: []knowledge.Subtopic{{Name: "Проездной", Answer: "Купите в кассе."}}},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Replace(ctx, next))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.Topics(), got.Topics())

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM subtopic_keywords`))
	assert.Zero(t, n)
}

func TestReplaceRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Replace(ctx, sampleStore(t)))

	_, err := db.Exec(`DROP TABLE subtopic_keywords`)
	require.NoError(t, err)
	require.Error(t, repo.Replace(ctx, sampleStore(t)))

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM topics`))
	assert.Equal(t, 3, n)
}

func TestLoadEmptyDatabase(t *testing.T) {
	repo, _ := newTestRepo(t)
	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Topics())
}

func TestLoadRejectsInvalidContent(t *testing.T) {
	repo, db := newTestRepo(t)
	_, err := db.Exec(`INSERT INTO topics (name, position) VALUES ('  ', 0)`)
	require.NoError(t, err)
	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, knowledge.ErrInvalid)
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "guide", SSLMode: "disable"}
	assert.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=guide sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/guide?sslmode=disable", URL(cfg))
}

func TestMigrationFiles(t *testing.T) {
	files := listMigrationFiles(migrationFS, migrationsDir)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_knowledge.up.sql", files[0])

	fake := fstest.MapFS{
		"m/0001_a.up.sql":   {},
		"m/0001_a.down.sql": {},
		"m/0002_b.up.sql":   {},
		"m/0003_c.up.sql":   {},
	}
	files = listMigrationFiles(fake, "m")
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}, files)
	assert.Equal(t, 2, countApplied(files, 1, 3))
	assert.Zero(t, countApplied(files, 3, 3))
}
