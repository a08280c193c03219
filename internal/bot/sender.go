package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/keyboard"
	"github.com/Proton-105/pairpicker-bot/internal/dialogue"
	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
	"github.com/Proton-105/pairpicker-bot/internal/state"
)

// API is the part of telebot.Bot used to deliver replies.
type API interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Respond(c *telebot.Callback, resp ...*telebot.CallbackResponse) error
}

// SenderOption customizes a TelegramSender.
type SenderOption func(*TelegramSender)

// WithSendRetry overrides the retry policy for transient delivery failures.
func WithSendRetry(policy apperrors.RetryPolicy) SenderOption {
	return func(s *TelegramSender) {
		s.retry = policy
	}
}

// TelegramSender implements dialogue.Sender on top of the Bot API.
type TelegramSender struct {
	api     API
	kb      *keyboard.Builder
	log     *slog.Logger
	breaker *apperrors.CircuitBreaker
	retry   apperrors.RetryPolicy
}

var _ dialogue.Sender = (*TelegramSender)(nil)

// NewSender builds a sender. A nil breaker disables fail-fast on outages.
func NewSender(api API, kb *keyboard.Builder, log *slog.Logger, breaker *apperrors.CircuitBreaker, opts ...SenderOption) *TelegramSender {
	if log == nil {
		log = slog.Default()
	}
	if kb == nil {
		kb = keyboard.NewBuilder(log)
	}

	s := &TelegramSender{
		api:     api,
		kb:      kb,
		log:     log,
		breaker: breaker,
		retry:   apperrors.DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Send delivers the reply, retrying flood control, server and network failures.
func (s *TelegramSender) Send(ctx context.Context, id state.ConversationID, reply dialogue.Reply) error {
	markup, err := s.kb.Markup(reply.Keyboard)
	if err != nil {
		return apperrors.NewSendError(err)
	}

	opts := make([]interface{}, 0, 1)
	if markup != nil {
		opts = append(opts, markup)
	}

	return apperrors.WithRetryPolicy(ctx, s.retry, func() error {
		return s.call(func() error {
			_, err := s.api.Send(telebot.ChatID(id), reply.Text, opts...)
			return err
		})
	})
}

// Acknowledge answers the callback query once.
func (s *TelegramSender) Acknowledge(_ context.Context, callbackID string) error {
	return s.call(func() error {
		return s.api.Respond(&telebot.Callback{ID: callbackID}, &telebot.CallbackResponse{})
	})
}

func (s *TelegramSender) call(fn func() error) error {
	classified := func() error {
		return classifySendError(fn())
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Call(classified)
	} else {
		err = classified()
	}

	if err != nil && !errors.Is(err, apperrors.ErrSendFailure) {
		s.log.Warn("telegram call rejected", slog.Any("error", err))
		return apperrors.NewSendError(err)
	}

	return err
}

// classifySendError separates failures worth retrying from permanent rejections.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return apperrors.NewTransientSendError(err, time.Duration(flood.RetryAfter)*time.Second)
	}

	var apiErr *telebot.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= http.StatusInternalServerError {
			return apperrors.NewTransientSendError(err, 0)
		}
		return apperrors.NewSendError(err)
	}

	// transport level failure, the request may not have reached Telegram
	return apperrors.NewTransientSendError(err, 0)
}
