package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChecker_Check(t *testing.T) {
	c := NewChecker(testLogger())
	c.AddCheck("ok", CheckFunc(func(context.Context) error { return nil }))
	c.AddCheck("broken", CheckFunc(func(context.Context) error { return errors.New("down") }))
	c.AddCheck("", CheckFunc(func(context.Context) error { return nil }))
	c.AddCheck("nil", nil)

	results := c.Check(context.Background())
	assert.Equal(t, map[string]string{"ok": StatusOK, "broken": "down"}, results)
	assert.False(t, Healthy(results))
	assert.True(t, Healthy(map[string]string{"ok": StatusOK}))
}

func TestChecker_TimesOutSlowCheck(t *testing.T) {
	c := NewChecker(testLogger())
	c.timeout = 10 * time.Millisecond
	c.AddCheck("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	results := c.Check(context.Background())
	assert.Equal(t, context.DeadlineExceeded.Error(), results["slow"])
}

func TestChecker_Handler(t *testing.T) {
	c := NewChecker(testLogger())
	c.AddCheck("redis", CheckFunc(func(context.Context) error { return errors.New("connection refused") }))
	c.AddCheck("telegram", CheckFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var rep report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	assert.Equal(t, "degraded", rep.Status)
	assert.Equal(t, []string{"redis"}, rep.Failing)
	assert.Equal(t, StatusOK, rep.Components["telegram"])
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	assert.NoError(t, checker.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, checker.HealthCheck(context.Background()))

	assert.Error(t, NewRedisChecker(nil).HealthCheck(context.Background()))
}

func TestTelegramChecker(t *testing.T) {
	var unauthorized atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if unauthorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"pairpicker_bot"}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := telebot.NewBot(telebot.Settings{URL: srv.URL, Token: "test-token", Offline: true})
	require.NoError(t, err)

	checker := NewTelegramChecker(b)
	assert.NoError(t, checker.HealthCheck(context.Background()))

	unauthorized.Store(true)
	assert.Error(t, checker.HealthCheck(context.Background()))

	assert.Error(t, NewTelegramChecker(nil).HealthCheck(context.Background()))
}
