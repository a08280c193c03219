package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/dialogue"
	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
)

type sendCall struct {
	to   telebot.Recipient
	what interface{}
	opts []interface{}
}

type fakeAPI struct {
	mu         sync.Mutex
	sends      []sendCall
	responds   []string
	sendErrs   []error
	respondErr error
}

func (f *fakeAPI) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends = append(f.sends, sendCall{to: to, what: what, opts: opts})
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &telebot.Message{}, nil
}

func (f *fakeAPI) Respond(c *telebot.Callback, _ ...*telebot.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responds = append(f.responds, c.ID)
	return f.respondErr
}

var fastRetry = apperrors.RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTelegramSender_SendWithKeyboard(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, nil, testLogger(), nil, WithSendRetry(fastRetry))

	err := s.Send(context.Background(), 42, dialogue.Reply{
		Text:     "Select your trading pair:",
		Keyboard: dialogue.Keyboard{{{Text: "BTCUSDT", Data: "BTCUSDT"}, {Text: "ETHUSDT", Data: "ETHUSDT"}}},
	})
	require.NoError(t, err)

	require.Len(t, api.sends, 1)
	call := api.sends[0]
	assert.Equal(t, "42", call.to.Recipient())
	assert.Equal(t, "Select your trading pair:", call.what)
	require.Len(t, call.opts, 1)
	markup, ok := call.opts[0].(*telebot.ReplyMarkup)
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", markup.InlineKeyboard[0][1].Data)
}

func TestTelegramSender_SendWithoutKeyboard(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, nil, testLogger(), nil)

	require.NoError(t, s.Send(context.Background(), 1, dialogue.Reply{Text: "4h\nBTCUSDT"}))
	require.Len(t, api.sends, 1)
	assert.Empty(t, api.sends[0].opts)
}

func TestTelegramSender_RetryClassification(t *testing.T) {
	testCases := []struct {
		name          string
		errs          []error
		expectedCalls int
		expectErr     bool
		retryable     bool
	}{
		{
			name:          "server error retried",
			errs:          []error{&telebot.Error{Code: 502, Description: "Bad Gateway"}, nil},
			expectedCalls: 2,
		},
		{
			name:          "network error retried",
			errs:          []error{errors.New("telebot: connection reset"), nil},
			expectedCalls: 2,
		},
		{
			name:          "blocked user is permanent",
			errs:          []error{telebot.ErrBlockedByUser},
			expectedCalls: 1,
			expectErr:     true,
		},
		{
			name: "persistent outage exhausts retries",
			errs: []error{
				&telebot.Error{Code: 500},
				&telebot.Error{Code: 500},
				&telebot.Error{Code: 500},
			},
			expectedCalls: 3,
			expectErr:     true,
			retryable:     true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{sendErrs: tc.errs}
			s := NewSender(api, nil, testLogger(), nil, WithSendRetry(fastRetry))

			err := s.Send(context.Background(), 1, dialogue.Reply{Text: "hi"})

			assert.Len(t, api.sends, tc.expectedCalls)
			if !tc.expectErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrSendFailure)
			assert.Equal(t, tc.retryable, apperrors.IsRetryable(err))
		})
	}
}

func TestClassifySendError_FloodControl(t *testing.T) {
	err := classifySendError(telebot.FloodError{RetryAfter: 3})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable)
	assert.Equal(t, 3*time.Second, appErr.RetryAfter)
}

func TestTelegramSender_CircuitBreakerFailsFast(t *testing.T) {
	api := &fakeAPI{sendErrs: []error{errors.New("dial tcp: timeout"), errors.New("dial tcp: timeout")}}
	breaker := apperrors.NewCircuitBreakerWithSettings(apperrors.BreakerSettings{MinRequests: 2, Timeout: time.Hour})
	s := NewSender(api, nil, testLogger(), breaker, WithSendRetry(apperrors.RetryPolicy{MaxRetries: 0}))

	_ = s.Send(context.Background(), 1, dialogue.Reply{Text: "a"})
	_ = s.Send(context.Background(), 1, dialogue.Reply{Text: "b"})
	require.Equal(t, apperrors.StateOpen, breaker.State())

	err := s.Send(context.Background(), 1, dialogue.Reply{Text: "c"})
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrSendFailure)
	assert.Len(t, api.sends, 2)
}

func TestTelegramSender_Acknowledge(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, nil, testLogger(), nil)

	require.NoError(t, s.Acknowledge(context.Background(), "cb-9"))
	assert.Equal(t, []string{"cb-9"}, api.responds)

	api.respondErr = telebot.ErrQueryTooOld
	err := s.Acknowledge(context.Background(), "cb-10")
	assert.ErrorIs(t, err, apperrors.ErrSendFailure)
	assert.Len(t, api.responds, 2)
}

func TestTelegramSender_RejectsOversizedCallbackData(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, nil, testLogger(), nil)

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'x'
	}

	err := s.Send(context.Background(), 1, dialogue.Reply{
		Text:     "x",
		Keyboard: dialogue.Keyboard{{{Text: "x", Data: string(long)}}},
	})
	assert.ErrorIs(t, err, apperrors.ErrSendFailure)
	assert.Empty(t, api.sends)
}
