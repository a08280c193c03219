package health

import (
	"context"
	"errors"
)

var errBotNotInitialized = errors.New("telegram bot is not initialized")

// RawCaller is the part of telebot.Bot used to reach the Bot API.
type RawCaller interface {
	Raw(method string, payload interface{}) ([]byte, error)
}

// TelegramChecker verifies that the Bot API accepts the token by calling getMe.
type TelegramChecker struct {
	bot RawCaller
}

func NewTelegramChecker(bot RawCaller) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

// HealthCheck calls getMe and gives up when ctx ends first.
func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bot == nil {
		return errBotNotInitialized
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Raw("getMe", nil)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
