package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const defaultLockTTL = time.Minute

var (
	// ErrRequestInProgress is returned while another worker holds the key.
	ErrRequestInProgress = errors.New("request with this key is already in progress")
	// ErrStoreUnavailable wraps store failures that happen before fn runs.
	ErrStoreUnavailable = errors.New("idempotency store unavailable")
)

var errNilOperation = errors.New("operation fn cannot be nil")

type Operation func(ctx context.Context) error

type Result struct {
	// Duplicate is set when the key was completed before and fn did not run.
	Duplicate bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	log     *slog.Logger
	lockTTL time.Duration
	now     func() time.Time
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		log:     log,
		lockTTL: defaultLockTTL,
		now:     time.Now,
	}
}

// Execute runs fn once per key. A completed key is remembered for ttl.
// A failed fn releases the key so a redelivery can run it again.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errNilOperation
	}

	if done, err := m.completed(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	} else if done {
		return &Result{Duplicate: true}, nil
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !locked {
		return nil, ErrRequestInProgress
	}

	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// the previous holder may have completed between the check and the claim
	if done, err := m.completed(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	} else if done {
		return &Result{Duplicate: true}, nil
	}

	if err := fn(ctx); err != nil {
		return nil, err
	}

	if err := m.store.Set(context.WithoutCancel(ctx), key, &Record{
		Status:      StatusCompleted,
		CompletedAt: m.now().UTC(),
	}, ttl); err != nil {
		m.log.Error("failed to remember completed update", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{}, nil
}

func (m *manager) completed(ctx context.Context, key string) (bool, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}

	return record != nil && record.Status == StatusCompleted, nil
}
