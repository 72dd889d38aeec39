package activitylog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/logging"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *stepClock {
	return &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

// failingStore rejects every write.
type failingStore struct{ *MemoryStore }

func (failingStore) Set(string, []byte) error { return errors.New("quota exceeded") }

func TestLogger_PersistsUnderFixedKey(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, newClock().Now, logging.Discard())
	ctx := WithRequestInfo(context.Background(), "test-agent/1.0", "10.0.0.1")

	e := l.Log(ctx, "page_view", "Ana sayfa")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "test-agent/1.0", e.UserAgent)
	assert.Equal(t, "10.0.0.1", e.IP)

	raw, err := store.Get(StorageKey)
	require.NoError(t, err)
	var saved []LogEntry
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "page_view", saved[0].Action)
	assert.Equal(t, "Ana sayfa", saved[0].Details)
}

func TestLogger_LogsNewestFirst(t *testing.T) {
	l := New(NewMemoryStore(), newClock().Now, logging.Discard())
	ctx := context.Background()
	l.Log(ctx, "login", "first")
	l.Log(ctx, "view", "second")
	l.Log(ctx, "logout", "third")

	logs := l.Logs(ctx)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{logs[0].Details, logs[1].Details, logs[2].Details})
	assert.True(t, logs[0].Timestamp.After(logs[1].Timestamp))
}

func TestLogger_ReloadsFromStore(t *testing.T) {
	store := NewMemoryStore()
	clock := newClock()
	first := New(store, clock.Now, logging.Discard())
	first.Log(context.Background(), "login", "from an earlier process")

	second := New(store, clock.Now, logging.Discard())
	second.Log(context.Background(), "logout", "now")

	logs := second.Logs(context.Background())
	require.Len(t, logs, 2)
	assert.Equal(t, "logout", logs[0].Action)
	assert.Equal(t, "login", logs[1].Action)
}

func TestLogger_PersistFailureIsIgnored(t *testing.T) {
	l := New(failingStore{NewMemoryStore()}, newClock().Now, logging.Discard())
	ctx := context.Background()

	assert.NotPanics(t, func() { l.Log(ctx, "login", "x") })
	// nothing in the store, so the memory copy is served
	logs := l.Logs(ctx)
	require.Len(t, logs, 1)
	assert.Equal(t, "login", logs[0].Action)
}

func TestLogger_CorruptStoreFallsBackToMemory(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, newClock().Now, logging.Discard())
	l.Log(context.Background(), "login", "x")
	require.NoError(t, store.Set(StorageKey, []byte("{not json")))

	logs := l.Logs(context.Background())
	require.Len(t, logs, 1)
}

func TestLogger_Clear(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, newClock().Now, logging.Discard())
	l.Log(context.Background(), "login", "x")

	l.Clear(context.Background())
	assert.Empty(t, l.Logs(context.Background()))
	_, err := store.Get(StorageKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(StorageKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	l := New(store, newClock().Now, logging.Discard())
	l.Log(context.Background(), "create_event", "Piknik")

	logs := New(store, nil, logging.Discard()).Logs(context.Background())
	require.Len(t, logs, 1)
	assert.Equal(t, "Piknik", logs[0].Details)

	require.NoError(t, store.Delete(StorageKey))
	_, err = store.Get(StorageKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}
