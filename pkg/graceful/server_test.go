package graceful

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_ServesUntilCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := NewServer(testLogger(), &http.Server{Addr: "127.0.0.1:0", Handler: mux}, time.Second)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/livez")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get("http://" + srv.Addr() + "/livez")
	assert.Error(t, err)
}

func TestServer_ListenFailure(t *testing.T) {
	first := NewServer(testLogger(), &http.Server{Addr: "127.0.0.1:0"}, time.Second)
	require.NoError(t, first.Listen())
	t.Cleanup(func() { _ = first.listener.Close() })

	second := NewServer(testLogger(), &http.Server{Addr: first.Addr()}, time.Second)
	assert.Error(t, second.ListenAndServe(context.Background()))
}
