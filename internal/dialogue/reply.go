package dialogue

import (
	"context"

	"github.com/Proton-105/pairpicker-bot/internal/state"
)

// Button is a selectable option. Data comes back verbatim as the press payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Options returns the payloads of every button in row order.
func (k Keyboard) Options() []string {
	var out []string
	for _, row := range k {
		for _, btn := range row {
			out = append(out, btn.Data)
		}
	}
	return out
}

// Reply is an outbound message with an optional keyboard.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// Sender delivers replies and clears the loading indicator of button presses.
type Sender interface {
	Send(ctx context.Context, id state.ConversationID, reply Reply) error
	Acknowledge(ctx context.Context, callbackID string) error
}
