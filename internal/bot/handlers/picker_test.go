package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/dialogue"
	"github.com/Proton-105/pairpicker-bot/internal/state"
)

type recordingDispatcher struct {
	events []dialogue.Event
	ctxs   []context.Context
	result dialogue.Result
	err    error
}

func (d *recordingDispatcher) Handle(ctx context.Context, ev dialogue.Event) (dialogue.Result, error) {
	d.events = append(d.events, ev)
	d.ctxs = append(d.ctxs, ctx)
	return d.result, d.err
}

type telegramStub struct {
	mu      sync.Mutex
	methods []string
}

func (s *telegramStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.methods = append(s.methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func (s *telegramStub) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

func newTestBot(t *testing.T) (*telebot.Bot, *telegramStub) {
	t.Helper()

	stub := &telegramStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	b, err := telebot.NewBot(telebot.Settings{
		URL:     srv.URL,
		Token:   "test-token",
		Offline: true,
	})
	require.NoError(t, err)

	return b, stub
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventFromContext(t *testing.T) {
	b, _ := newTestBot(t)

	testCases := []struct {
		name     string
		update   telebot.Update
		expected dialogue.Event
		ok       bool
	}{
		{
			name: "start command",
			update: telebot.Update{Message: &telebot.Message{
				Text:   "/start",
				Chat:   &telebot.Chat{ID: 42},
				Sender: &telebot.User{ID: 7, LanguageCode: "ru"},
			}},
			expected: dialogue.Event{ConversationID: 42, Kind: dialogue.EventCommand, Command: "start", Text: "/start", Lang: "ru"},
			ok:       true,
		},
		{
			name: "photo caption command has no text",
			update: telebot.Update{Message: &telebot.Message{
				Caption: "/start",
				Chat:    &telebot.Chat{ID: 42},
			}},
			expected: dialogue.Event{ConversationID: 42, Kind: dialogue.EventCommand, Command: "start"},
			ok:       true,
		},
		{
			name: "button press",
			update: telebot.Update{Callback: &telebot.Callback{
				ID:      "cb-1",
				Data:    "ETHUSDT",
				Sender:  &telebot.User{ID: 7, LanguageCode: "en"},
				Message: &telebot.Message{Chat: &telebot.Chat{ID: 42}},
			}},
			expected: dialogue.Event{ConversationID: 42, Kind: dialogue.EventButtonPress, Payload: "ETHUSDT", CallbackID: "cb-1", Lang: "en"},
			ok:       true,
		},
		{
			name: "framed callback data is stripped",
			update: telebot.Update{Callback: &telebot.Callback{
				ID:      "cb-2",
				Data:    "\fpicker|4h",
				Message: &telebot.Message{Chat: &telebot.Chat{ID: 42}},
			}},
			expected: dialogue.Event{ConversationID: 42, Kind: dialogue.EventButtonPress, Payload: "4h", CallbackID: "cb-2"},
			ok:       true,
		},
		{
			name: "inline message callback uses sender chat",
			update: telebot.Update{Callback: &telebot.Callback{
				ID:     "cb-3",
				Sender: &telebot.User{ID: 7},
			}},
			expected: dialogue.Event{ConversationID: 7, Kind: dialogue.EventButtonPress, CallbackID: "cb-3"},
			ok:       true,
		},
		{
			name:   "update without chat",
			update: telebot.Update{},
			ok:     false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := EventFromContext(b.NewContext(tc.update))

			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, ev)
			}
		})
	}
}

func TestPickerHandler_PassesRequestContext(t *testing.T) {
	b, stub := newTestBot(t)
	d := &recordingDispatcher{result: dialogue.Result{Handled: true}}
	h := NewPickerHandler(d, testLogger())

	type key struct{}
	c := b.NewContext(telebot.Update{Message: &telebot.Message{Text: "/start", Chat: &telebot.Chat{ID: 1}}})
	WithRequestContext(c, context.WithValue(context.Background(), key{}, "marker"))

	require.NoError(t, h(c))
	require.Len(t, d.events, 1)
	assert.Equal(t, state.ConversationID(1), d.events[0].ConversationID)
	assert.Equal(t, "marker", d.ctxs[0].Value(key{}))
	assert.Empty(t, stub.calls())
}

func TestPickerHandler_AnswersIgnoredCallbacks(t *testing.T) {
	b, stub := newTestBot(t)
	d := &recordingDispatcher{result: dialogue.Result{Handled: false}}
	h := NewPickerHandler(d, testLogger())

	c := b.NewContext(telebot.Update{Callback: &telebot.Callback{
		ID:      "stale",
		Data:    "BTCUSDT",
		Message: &telebot.Message{Chat: &telebot.Chat{ID: 5}},
	}})

	require.NoError(t, h(c))
	assert.Equal(t, []string{"answerCallbackQuery"}, stub.calls())
}

func TestPickerHandler_ReturnsDispatcherError(t *testing.T) {
	b, _ := newTestBot(t)
	boom := errors.New("boom")
	h := NewPickerHandler(&recordingDispatcher{err: boom}, testLogger())

	c := b.NewContext(telebot.Update{Message: &telebot.Message{Text: "/start", Chat: &telebot.Chat{ID: 1}}})
	assert.ErrorIs(t, h(c), boom)
}

func TestRequestContext_DefaultsToBackground(t *testing.T) {
	b, _ := newTestBot(t)
	c := b.NewContext(telebot.Update{})

	assert.Equal(t, context.Background(), RequestContext(c))
	assert.Equal(t, context.Background(), RequestContext(nil))
}
