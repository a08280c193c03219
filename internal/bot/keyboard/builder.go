package keyboard

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/dialogue"
)

// Builder renders dialogue keyboards as Telegram inline markup.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}

	return &Builder{log: log}
}

// Markup converts kb into inline markup. An empty keyboard yields nil markup.
func (b *Builder) Markup(kb dialogue.Keyboard) (*telebot.ReplyMarkup, error) {
	inline := NewInlineKeyboard()
	for _, row := range kb {
		buttons := make([]InlineButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, InlineButton{Text: btn.Text, Data: btn.Data})
		}
		inline.AddRow(buttons...)
	}

	if inline.Rows() == 0 {
		return nil, nil
	}

	markup, err := inline.Build()
	if err != nil {
		b.log.Error("failed to build inline keyboard", slog.Any("error", err))
		return nil, fmt.Errorf("build keyboard: %w", err)
	}

	return markup, nil
}
