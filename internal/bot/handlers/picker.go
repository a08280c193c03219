package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/keyboard"
	"github.com/Proton-105/pairpicker-bot/internal/dialogue"
	"github.com/Proton-105/pairpicker-bot/internal/state"
)

// EventDispatcher applies dialogue events.
type EventDispatcher interface {
	Handle(ctx context.Context, ev dialogue.Event) (dialogue.Result, error)
}

// NewPickerHandler feeds every message and button press into the dialogue.
func NewPickerHandler(d EventDispatcher, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		ev, ok := EventFromContext(c)
		if !ok {
			log.Warn("picker handler invoked without chat context")
			return nil
		}

		res, err := d.Handle(RequestContext(c), ev)
		if err != nil {
			return err
		}

		// stale buttons from an earlier step would otherwise spin forever
		if !res.Handled && ev.CallbackID != "" {
			if err := c.Respond(); err != nil {
				log.Debug("failed to answer ignored callback", slog.String("conversation_id", ev.ConversationID.String()), slog.Any("error", err))
			}
		}

		return nil
	}
}

// EventFromContext converts a telebot update into a dialogue event.
func EventFromContext(c telebot.Context) (dialogue.Event, bool) {
	if c == nil {
		return dialogue.Event{}, false
	}

	id, ok := ConversationID(c)
	if !ok {
		return dialogue.Event{}, false
	}

	lang := ""
	if sender := c.Sender(); sender != nil {
		lang = sender.LanguageCode
	}

	if cb := c.Callback(); cb != nil {
		payload := cb.Data
		if cb.Unique == "" {
			_, payload = keyboard.DecodeCallback(cb.Data)
		}
		return dialogue.NewButtonEvent(id, cb.ID, payload, lang), true
	}

	msg := c.Message()
	if msg == nil {
		return dialogue.Event{}, false
	}

	return dialogue.NewMessageEvent(id, msg.Text, msg.Caption, lang), true
}

// ConversationID returns the chat the update belongs to. Callbacks on inline
// messages carry no chat, so the sender's private chat is used instead.
func ConversationID(c telebot.Context) (state.ConversationID, bool) {
	if chat := c.Chat(); chat != nil && chat.ID != 0 {
		return state.ConversationID(chat.ID), true
	}

	if sender := c.Sender(); sender != nil && sender.ID != 0 {
		return state.ConversationID(sender.ID), true
	}

	return 0, false
}
