package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
	"github.com/Proton-105/pairpicker-bot/internal/middleware"
	"github.com/Proton-105/pairpicker-bot/pkg/config"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Options carries the optional collaborators of a Bot.
type Options struct {
	ErrHandler     *apperrors.Handler
	HandlerTimeout time.Duration
	// Middlewares run for every update before routing, e.g. rate limiting.
	Middlewares []telebot.MiddlewareFunc
}

// Bot wraps telebot.Bot with the dialogue routing.
type Bot struct {
	telebot *telebot.Bot
	log     *slog.Logger
	router  *Router
}

// NewTelebot creates the Bot API client for the configured update mode.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil {
				if id, ok := handlers.ConversationID(c); ok {
					attrs = append(attrs, slog.String("conversation_id", id.String()))
				}
			}
			log.Error("telebot error", attrs...)
		},
	}

	if cfg.Mode == ModeWebhook {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.PollTimeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// New wires the dialogue dispatcher into tb.
func New(tb *telebot.Bot, dispatcher handlers.EventDispatcher, log *slog.Logger, opts Options) *Bot {
	if log == nil {
		log = slog.Default()
	}

	router := NewRouter(handlers.NewPickerHandler(dispatcher, log), log)
	router.Use(RecoveryMiddleware(log, opts.ErrHandler))
	router.Use(RequestContextMiddleware(opts.HandlerTimeout))
	router.Use(ErrorHandlingMiddleware(opts.ErrHandler))
	router.Use(LoggingMiddleware(log))
	router.Use(middleware.Metrics)

	b := &Bot{
		telebot: tb,
		log:     log,
		router:  router,
	}

	if len(opts.Middlewares) > 0 {
		b.telebot.Use(opts.Middlewares...)
	}

	b.registerTelebotHandlers()

	return b
}

// Start runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop stops polling and waits for in-flight updates until ctx ends.
func (b *Bot) Stop(ctx context.Context) error {
	if b.telebot == nil {
		return nil
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()

	return b.router.Drain(ctx)
}

// Router exposes the update router.
func (b *Bot) Router() *Router {
	return b.router
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
	// commands in photo captions reach the dialogue as messages without text
	b.telebot.Handle(telebot.OnMedia, b.router.Route)
}
