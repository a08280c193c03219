package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// callbackPrefix marks callback data produced for a telebot unique handler.
	callbackPrefix         = "\f"
	CallbackDataSeparator  = "|"
	CallbackDataLimitBytes = 64
)

// ErrCallbackTooLong is returned for callback data Telegram would reject.
var ErrCallbackTooLong = errors.New("callback data exceeds limit")

// EncodeCallback renders the callback data Telegram returns on a press.
// Without unique the data is sent verbatim.
func EncodeCallback(unique, data string) (string, error) {
	payload := data
	if unique != "" {
		payload = callbackPrefix + unique
		if data != "" {
			payload += CallbackDataSeparator + data
		}
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("%w: %d bytes allowed, got %d", ErrCallbackTooLong, CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits callback data into the unique handler name and the payload.
// Data that was not produced for a unique handler is returned as payload unchanged.
func DecodeCallback(callbackData string) (unique, data string) {
	if !strings.HasPrefix(callbackData, callbackPrefix) {
		return "", callbackData
	}

	trimmed := strings.TrimPrefix(callbackData, callbackPrefix)
	unique, data, _ = strings.Cut(trimmed, CallbackDataSeparator)
	return unique, data
}
