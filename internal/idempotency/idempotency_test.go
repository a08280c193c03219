package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"redis":  NewRedisStore(client, testLogger()),
		"memory": NewMemoryStore(),
	}
}

func TestManager_RunsOnceAndRemembersCompletion(t *testing.T) {
	for name, store := range stores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())
			ctx := context.Background()
			calls := 0
			op := func(context.Context) error {
				calls++
				return nil
			}

			res, err := m.Execute(ctx, "update:1", time.Minute, op)
			require.NoError(t, err)
			assert.False(t, res.Duplicate)

			res, err = m.Execute(ctx, "update:1", time.Minute, op)
			require.NoError(t, err)
			assert.True(t, res.Duplicate)

			assert.Equal(t, 1, calls)

			rec, err := store.Get(ctx, "update:1")
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, StatusCompleted, rec.Status)
			assert.False(t, rec.CompletedAt.IsZero())
		})
	}
}

func TestManager_FailureAllowsRetry(t *testing.T) {
	for name, store := range stores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())
			boom := errors.New("boom")

			_, err := m.Execute(context.Background(), "update:2", time.Minute, func(context.Context) error { return boom })
			assert.ErrorIs(t, err, boom)

			res, err := m.Execute(context.Background(), "update:2", time.Minute, func(context.Context) error { return nil })
			require.NoError(t, err)
			assert.False(t, res.Duplicate)
		})
	}
}

func TestManager_ConcurrentClaimIsRejected(t *testing.T) {
	for name, store := range stores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, testLogger())

			_, err := m.Execute(context.Background(), "update:3", time.Minute, func(ctx context.Context) error {
				_, innerErr := m.Execute(ctx, "update:3", time.Minute, func(context.Context) error { return nil })
				assert.ErrorIs(t, innerErr, ErrRequestInProgress)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestManager_NilOperation(t *testing.T) {
	_, err := NewManager(NewMemoryStore(), testLogger()).Execute(context.Background(), "k", time.Minute, nil)
	assert.Error(t, err)
}

func TestManager_StoreOutage(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectHGetAll("idempotency:update:4").SetErr(errors.New("connection refused"))

	m := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ran := false
	_, err := m.Execute(context.Background(), "update:4", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_RecordExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, testLogger())
	require.NoError(t, store.Set(context.Background(), "k", &Record{Status: StatusCompleted, CompletedAt: time.Now()}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("idempotency:k"))

	mr.FastForward(2 * time.Minute)
	rec, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStore_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_, _ = store.Lock(ctx, "a", time.Second)
	_ = store.Set(ctx, "b", &Record{Status: StatusCompleted}, time.Second)
	_ = store.Set(ctx, "c", &Record{Status: StatusCompleted}, time.Hour)

	now = now.Add(time.Minute)
	assert.Equal(t, 2, store.Sweep())

	rec, err := store.Get(ctx, "c")
	require.NoError(t, err)
	assert.NotNil(t, rec)

	locked, err := store.Lock(ctx, "a", time.Second)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, UpdateKey(1), UpdateKey(1))
	assert.NotEqual(t, UpdateKey(1), UpdateKey(2))
	assert.NotEqual(t, UpdateKey(7), CallbackKey("7"))
	assert.Equal(t, GenerateKey("update", "1"), UpdateKey(1))
	assert.Len(t, GenerateKey("x"), 64)
}
