// Package dialogue drives the symbol and interval picker conversation.
package dialogue

import (
	"strings"

	"github.com/Proton-105/pairpicker-bot/internal/state"
)

// EventKind discriminates inbound events.
type EventKind int

const (
	EventPlainText EventKind = iota
	EventCommand
	EventButtonPress
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventButtonPress:
		return "button_press"
	case EventPlainText:
		return "plain_text"
	default:
		return "unknown"
	}
}

// CommandStart opens the picker.
const CommandStart = "start"

// Event is one inbound update for a conversation.
type Event struct {
	ConversationID state.ConversationID
	Kind           EventKind
	// Command is set for EventCommand, lowercased and without the slash or bot mention.
	Command string
	// Text is the message text. It is empty when the message carried none.
	Text string
	// Payload is the opaque button data for EventButtonPress.
	Payload string
	// CallbackID identifies the button press to acknowledge.
	CallbackID string
	Lang       string
}

// NewMessageEvent builds an event from a chat message. The command is taken from
// text, or from caption when the message has no text of its own.
func NewMessageEvent(id state.ConversationID, text, caption, lang string) Event {
	ev := Event{
		ConversationID: id,
		Kind:           EventPlainText,
		Text:           text,
		Lang:           lang,
	}

	source := text
	if source == "" {
		source = caption
	}

	if name, ok := parseCommand(source); ok {
		ev.Kind = EventCommand
		ev.Command = name
	}

	return ev
}

// NewButtonEvent builds an event from an inline button press.
func NewButtonEvent(id state.ConversationID, callbackID, payload, lang string) Event {
	return Event{
		ConversationID: id,
		Kind:           EventButtonPress,
		Payload:        payload,
		CallbackID:     callbackID,
		Lang:           lang,
	}
}

// parseCommand extracts "start" from "/start@pair_bot arg".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}

	return name, true
}
