package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_UnknownConversationIsStart(t *testing.T) {
	storage := NewMemoryStorage()

	st, err := storage.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Start{}, st)

	_, ok, err := storage.Lookup(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorage_SetOverwritesAndClear(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	storage.now = func() time.Time { return fixed }

	require.NoError(t, storage.Set(ctx, 5, AwaitingPeriod{Symbol: "BTC/USDT"}))
	require.NoError(t, storage.Set(ctx, 5, AwaitingConfirmation{Symbol: "BTC/USDT", Period: "1h"}))

	st, err := storage.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, AwaitingConfirmation{Symbol: "BTC/USDT", Period: "1h"}, st)

	rec, ok, err := storage.Lookup(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fixed, rec.UpdatedAt)

	require.NoError(t, storage.Clear(ctx, 5))
	st, err = storage.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, Start{}, st)
}

func TestMemoryStorage_ConversationsAreIndependent(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	require.NoError(t, storage.Set(ctx, 1, AwaitingSymbol{}))
	require.NoError(t, storage.Set(ctx, 2, AwaitingPeriod{Symbol: "ETH/USDT"}))

	first, err := storage.Get(ctx, 1)
	require.NoError(t, err)
	second, err := storage.Get(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, AwaitingSymbol{}, first)
	assert.Equal(t, AwaitingPeriod{Symbol: "ETH/USDT"}, second)

	records, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemoryStorage_SetNilState(t *testing.T) {
	storage := NewMemoryStorage()
	assert.ErrorIs(t, storage.Set(context.Background(), 1, nil), ErrNilState)
}
