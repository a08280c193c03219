package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)
	ctx := context.Background()

	want := AwaitingConfirmation{Symbol: "BNB/USDT", Period: "15m"}
	require.NoError(t, storage.Set(ctx, 123, want))

	got, err := storage.Get(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedisStorage_GetNotFoundIsStart(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)

	st, err := storage.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, Start{}, st)
}

func TestRedisStorage_Clear(t *testing.T) {
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, 456, AwaitingSymbol{}))
	assert.True(t, mr.Exists("dialogue:state:456"))

	require.NoError(t, storage.Clear(ctx, 456))
	assert.False(t, mr.Exists("dialogue:state:456"))

	st, err := storage.Get(ctx, 456)
	require.NoError(t, err)
	assert.Equal(t, Start{}, st)
}

func TestRedisStorage_AppliesTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), time.Hour)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, 1, AwaitingSymbol{}))
	assert.Equal(t, time.Hour, mr.TTL("dialogue:state:1"))

	mr.FastForward(2 * time.Hour)

	st, err := storage.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Start{}, st)
}

func TestRedisStorage_CorruptRecord(t *testing.T) {
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)

	require.NoError(t, mr.Set("dialogue:state:9", `{"kind":"awaiting_period"}`))
	require.NoError(t, mr.Set("dialogue:state:10", `not json`))

	_, err := storage.Get(context.Background(), 9)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = storage.Get(context.Background(), 10)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestRedisStorage_ListSkipsBrokenEntries(t *testing.T) {
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, testLogger(), 0)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, 1, AwaitingSymbol{}))
	require.NoError(t, storage.Set(ctx, 2, AwaitingPeriod{Symbol: "SOL/USDT"}))
	require.NoError(t, mr.Set("dialogue:state:abc", `{}`))
	require.NoError(t, mr.Set("dialogue:state:3", `garbage`))
	require.NoError(t, mr.Set("other:key", `{}`))

	records, err := storage.List(ctx)
	require.NoError(t, err)

	ids := make([]ConversationID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ConversationID)
	}
	assert.ElementsMatch(t, []ConversationID{1, 2}, ids)
}

func TestRedisStorage_GetPropagatesRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	storage := NewRedisStorage(client, testLogger(), 0)

	mock.ExpectGet("dialogue:state:77").SetErr(errors.New("connection refused"))

	st, err := storage.Get(context.Background(), 77)
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
