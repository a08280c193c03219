package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix      = "dialogue:state:"
	stateScanPattern    = stateKeyPrefix + "*"
	stateScanBatchCount = 100
)

// RedisStorage persists dialogue state in Redis as JSON records.
type RedisStorage struct {
	client redis.Cmdable
	log    *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

var (
	_ Storage   = (*RedisStorage)(nil)
	_ Inspector = (*RedisStorage)(nil)
)

// NewRedisStorage initializes a Redis-backed Storage. A zero ttl keeps records until cleared.
func NewRedisStorage(client redis.Cmdable, log *slog.Logger, ttl time.Duration) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the stored state or Start when the key is absent.
func (s *RedisStorage) Get(ctx context.Context, id ConversationID) (State, error) {
	rec, ok, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Start{}, nil
	}

	st, err := rec.State()
	if err != nil {
		s.log.Error("stored dialogue state is invalid", slog.String("conversation_id", id.String()), slog.Any("error", err))
		return nil, err
	}

	return st, nil
}

// Set saves the state with the configured TTL.
func (s *RedisStorage) Set(ctx context.Context, id ConversationID, st State) error {
	if st == nil {
		return ErrNilState
	}

	data, err := json.Marshal(NewRecord(id, st, s.now().UTC()))
	if err != nil {
		return fmt.Errorf("encode dialogue state: %w", err)
	}

	if err := s.client.Set(ctx, stateKey(id), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save dialogue state in redis", slog.String("conversation_id", id.String()), slog.Any("error", err))
		return fmt.Errorf("set dialogue state: %w", err)
	}

	return nil
}

// Clear removes the stored state for the conversation.
func (s *RedisStorage) Clear(ctx context.Context, id ConversationID) error {
	if err := s.client.Del(ctx, stateKey(id)).Err(); err != nil {
		s.log.Error("failed to clear dialogue state", slog.String("conversation_id", id.String()), slog.Any("error", err))
		return fmt.Errorf("clear dialogue state: %w", err)
	}

	return nil
}

// Lookup fetches the raw record for the conversation.
func (s *RedisStorage) Lookup(ctx context.Context, id ConversationID) (Record, bool, error) {
	data, err := s.client.Get(ctx, stateKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}

		s.log.Error("failed to get dialogue state from redis", slog.String("conversation_id", id.String()), slog.Any("error", err))
		return Record{}, false, fmt.Errorf("get dialogue state: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	return rec, true, nil
}

// List scans every stored record. Undecodable entries are skipped.
func (s *RedisStorage) List(ctx context.Context) ([]Record, error) {
	var (
		cursor uint64
		result []Record
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, stateScanPattern, stateScanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan dialogue states", slog.Any("error", err))
			return nil, fmt.Errorf("scan dialogue states: %w", err)
		}

		for _, key := range keys {
			id, err := conversationIDFromKey(key)
			if err != nil {
				s.log.Warn("skipping malformed dialogue state key", slog.String("key", key), slog.Any("error", err))
				continue
			}

			rec, ok, err := s.Lookup(ctx, id)
			if err != nil {
				if errors.Is(err, ErrCorruptRecord) {
					s.log.Warn("skipping undecodable dialogue state", slog.String("key", key), slog.Any("error", err))
					continue
				}
				return nil, err
			}
			if ok {
				result = append(result, rec)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func stateKey(id ConversationID) string {
	return stateKeyPrefix + id.String()
}

func conversationIDFromKey(key string) (ConversationID, error) {
	raw, ok := strings.CutPrefix(key, stateKeyPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid key format: %s", key)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}

	return ConversationID(id), nil
}
