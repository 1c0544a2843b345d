package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// TokenStore is the local persistence for the session token. An absent
// token is reported as "" with a nil error.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore creates a store seeded with token (may be empty).
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// Load returns the token.
func (m *MemoryTokenStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

// Save replaces the token.
func (m *MemoryTokenStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear removes the token.
func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// tokenRecord is the on-disk form written by FileTokenStore.
type tokenRecord struct {
	Token   string `cbor:"1,keyasint"`
	SavedAt int64  `cbor:"2,keyasint"`
}

// FileTokenStore persists the token as a CBOR record in a single file so that
// another process (a login flow, a second terminal) can hand over a session.
type FileTokenStore struct {
	path string
	now  func() time.Time
}

// NewFileTokenStore creates a store backed by path. The file is created on
// the first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path, now: time.Now}
}

// Load reads the token; a missing file means no token.
func (f *FileTokenStore) Load(context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	var rec tokenRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("decode token file: %w", err)
	}
	return rec.Token, nil
}

// Save writes the token atomically via a temp file and rename.
func (f *FileTokenStore) Save(_ context.Context, token string) error {
	data, err := cbor.Marshal(tokenRecord{Token: token, SavedAt: f.now().Unix()})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Clear deletes the token file.
func (f *FileTokenStore) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// RedisKeyPrefix namespaces token keys in Redis.
const RedisKeyPrefix = "shopfinder:session:"

// RedisTokenStore keeps the token under a per-profile key so that several
// client processes share one login.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore creates a store for profile (e.g. "default").
func NewRedisTokenStore(client *redis.Client, profile string) *RedisTokenStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisTokenStore{client: client, key: RedisKeyPrefix + profile}
}

// Load returns the token, "" when the key is absent.
func (r *RedisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return token, nil
}

// Save sets the token without expiry; validity is decided by the backend.
func (r *RedisTokenStore) Save(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Clear deletes the key.
func (r *RedisTokenStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}
