package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualagents/qualagents/internal/storage"
)

// memStore is an in-memory CacheStore for tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value     string
	expiresAt *time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]memEntry)}
}

func (m *memStore) GetCacheEntry(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
		return "", storage.ErrNotFound
	}
	return e.value, nil
}

func (m *memStore) SetCacheEntry(ctx context.Context, key, value string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (m *memStore) DeleteCacheEntry(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memStore) CleanupExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func TestGenerateKeyOrderInsensitive(t *testing.T) {
	a := map[string]interface{}{
		"purpose":            "analysis_plan",
		"research_objective": "find barriers",
		"input_hash":         "abc123",
	}
	b := map[string]interface{}{
		"input_hash":         "abc123",
		"research_objective": "find barriers",
		"purpose":            "analysis_plan",
	}
	assert.Equal(t, GenerateKey(a), GenerateKey(b))
}

func TestGenerateKeyDistinguishesPayloads(t *testing.T) {
	a := map[string]interface{}{"purpose": "analysis_plan", "input_hash": "abc"}
	b := map[string]interface{}{"purpose": "analysis_plan", "input_hash": "abd"}
	assert.NotEqual(t, GenerateKey(a), GenerateKey(b))
}

func TestHashTextDeterministic(t *testing.T) {
	assert.Equal(t, HashText("same input"), HashText("same input"))
	assert.NotEqual(t, HashText("one"), HashText("two"))
	assert.Len(t, HashText("anything"), 16)
}

func TestCacheHitAndMiss(t *testing.T) {
	c := New(newMemStore(), true, time.Hour)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", "plan text")
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "plan text", got)
}

func TestCacheDisabled(t *testing.T) {
	store := newMemStore()
	c := New(store, false, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, store.entries)
}

func TestCacheNegativeTTLMeansAbsent(t *testing.T) {
	c := New(newMemStore(), true, time.Hour)
	ctx := context.Background()

	c.SetWithTTL(ctx, "k", "v", -time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCacheZeroTTLMeansExpired(t *testing.T) {
	// Expiry is always now+ttl, so a zero TTL writes an entry that is
	// already expired when read back.
	store := newMemStore()
	c := New(store, true, 0)
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	time.Sleep(10 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	require.NotNil(t, store.entries["k"].expiresAt)
}

func TestCacheInvalidate(t *testing.T) {
	c := New(newMemStore(), true, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	c.Invalidate(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCleanupExpired(t *testing.T) {
	c := New(newMemStore(), true, time.Hour)
	ctx := context.Background()

	c.SetWithTTL(ctx, "stale", "v", -time.Minute)
	c.Set(ctx, "fresh", "v")

	n, err := c.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
