package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrAbsent reports that no index has been persisted yet.
	ErrAbsent = errors.New("index: cache absent")
	// ErrMalformed reports a persisted index that cannot be decoded.
	ErrMalformed = errors.New("index: cache malformed")
)

// Cache persists a whole Index.
type Cache interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, idx *Index) error
	// Describe names the backend for logs.
	Describe() string
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Load(context.Context) (*Index, error) { return nil, ErrAbsent }
func (NopCache) Save(context.Context, *Index) error   { return nil }
func (NopCache) Describe() string                     { return "none" }

// FileCache keeps the index as a JSON document on disk.
type FileCache struct {
	Path string
}

// Load reads the document. A missing file is ErrAbsent.
func (f FileCache) Load(_ context.Context) (*Index, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAbsent
		}
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return decodeDocument(data)
}

// Save writes to a temp file in the same directory and renames it over the
// target, so concurrent writers never leave a torn document.
func (f FileCache) Save(_ context.Context, idx *Index) error {
	data, err := encodeDocument(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write index file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// Describe implements Cache.
func (f FileCache) Describe() string { return "file:" + f.Path }

// RedisCache keeps the index in a single Redis hash, one field per token.
type RedisCache struct {
	Client redis.UniversalClient
	Key    string
}

// NewRedisCache parses a redis:// URL and returns a cache bound to key.
func NewRedisCache(url, key string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{Client: redis.NewClient(opt), Key: key}, nil
}

// Load reads every field of the hash. An empty or missing hash is ErrAbsent.
func (r *RedisCache) Load(ctx context.Context) (*Index, error) {
	fields, err := r.Client.HGetAll(ctx, r.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", r.Key, err)
	}
	if len(fields) == 0 {
		return nil, ErrAbsent
	}
	return decodeFields(fields)
}

// Save replaces the hash atomically.
func (r *RedisCache) Save(ctx context.Context, idx *Index) error {
	values, err := encodeFields(idx)
	if err != nil {
		return err
	}
	_, err = r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.Key)
		if len(values) > 0 {
			p.HSet(ctx, r.Key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", r.Key, err)
	}
	return nil
}

// Describe implements Cache.
func (r *RedisCache) Describe() string { return "redis:" + r.Key }

// Close releases the underlying client.
func (r *RedisCache) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func encodeFields(idx *Index) (map[string]any, error) {
	entries := idx.Entries()
	values := make(map[string]any, len(entries))
	for tok, ref := range entries {
		b, err := json.Marshal(ref)
		if err != nil {
			return nil, fmt.Errorf("encode ref %s: %w", tok, err)
		}
		values[tok] = string(b)
	}
	return values, nil
}

func decodeFields(fields map[string]string) (*Index, error) {
	entries := make(map[string]Ref, len(fields))
	for tok, raw := range fields {
		if len(tok) != TokenLength {
			return nil, fmt.Errorf("%w: token %q has length %d", ErrMalformed, tok, len(tok))
		}
		var ref Ref
		if err := json.Unmarshal([]byte(raw), &ref); err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrMalformed, tok, err)
		}
		entries[tok] = ref
	}
	return FromEntries(entries), nil
}
