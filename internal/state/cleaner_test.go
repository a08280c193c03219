package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaner_ClearsOnlyIdleConversations(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	storage.now = func() time.Time { return base }
	require.NoError(t, storage.Set(ctx, 1, AwaitingPeriod{Symbol: "BTC/USDT"}))

	storage.now = func() time.Time { return base.Add(50 * time.Minute) }
	require.NoError(t, storage.Set(ctx, 2, AwaitingSymbol{}))

	cleaner := NewCleaner(storage, NewSequencer(), testLogger(), 30*time.Minute, time.Minute)
	cleaner.now = func() time.Time { return base.Add(time.Hour) }

	assert.Equal(t, 1, cleaner.Cleanup(ctx))

	first, err := storage.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Start{}, first)

	second, err := storage.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, AwaitingSymbol{}, second)
}

func TestCleaner_WorksWithRedisStorage(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return base }

	require.NoError(t, storage.Set(ctx, 11, AwaitingSymbol{}))

	cleaner := NewCleaner(storage, nil, testLogger(), time.Minute, time.Minute)
	cleaner.now = func() time.Time { return base.Add(2 * time.Minute) }

	assert.Equal(t, 1, cleaner.Cleanup(ctx))
	assert.False(t, mr.Exists("dialogue:state:11"))
}

func TestCleaner_RunStopsOnCancel(t *testing.T) {
	cleaner := NewCleaner(NewMemoryStorage(), nil, testLogger(), time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cleaner.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
