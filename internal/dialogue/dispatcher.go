package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
	"github.com/Proton-105/pairpicker-bot/internal/i18n"
	"github.com/Proton-105/pairpicker-bot/internal/state"
	"github.com/Proton-105/pairpicker-bot/pkg/metrics"
)

// Result describes what Handle did with an event.
type Result struct {
	From         state.Kind
	To           state.Kind
	Handled      bool
	Replied      bool
	Acknowledged bool
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithMenu replaces the offered symbols, intervals and submit payload.
func WithMenu(menu Menu) Option {
	return func(d *Dispatcher) {
		defaults := DefaultMenu()
		if len(menu.Symbols) == 0 {
			menu.Symbols = defaults.Symbols
		}
		if len(menu.Intervals) == 0 {
			menu.Intervals = defaults.Intervals
		}
		if menu.SubmitLabel == "" {
			menu.SubmitLabel = defaults.SubmitLabel
		}
		d.menu = menu
	}
}

// WithCatalog localizes replies by the sender's language.
func WithCatalog(catalog *i18n.Manager) Option {
	return func(d *Dispatcher) {
		d.catalog = catalog
	}
}

// WithRestart lets /start reopen the picker from any step.
func WithRestart(enabled bool) Option {
	return func(d *Dispatcher) {
		d.allowRestart = enabled
	}
}

// WithUnhandledHint answers events that no step accepts with a short hint.
func WithUnhandledHint(enabled bool) Option {
	return func(d *Dispatcher) {
		d.unhandledHint = enabled
	}
}

// WithLocker replaces the in-process Sequencer, e.g. with a RedisLocker.
func WithLocker(locker state.Locker) Option {
	return func(d *Dispatcher) {
		if locker != nil {
			d.locker = locker
		}
	}
}

// Dispatcher applies events to the stored dialogue state and emits replies.
type Dispatcher struct {
	store         state.Storage
	sender        Sender
	locker        state.Locker
	log           *slog.Logger
	menu          Menu
	catalog       *i18n.Manager
	allowRestart  bool
	unhandledHint bool
}

// NewDispatcher wires a Dispatcher over store and sender.
func NewDispatcher(store state.Storage, sender Sender, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		store:  store,
		sender: sender,
		locker: state.NewSequencer(),
		log:    log,
		menu:   DefaultMenu(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// Handle processes one event. Events of one conversation are applied one at a
// time in arrival order; the new state is stored before the reply is sent and
// stays stored when sending fails.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (Result, error) {
	if ev.ConversationID == 0 {
		return Result{}, apperrors.NewValidationError("conversation id is required")
	}

	log := d.log.With(
		slog.String("conversation_id", ev.ConversationID.String()),
		slog.String("event", ev.Kind.String()),
	)

	unlock, err := d.locker.Lock(ctx, ev.ConversationID)
	if err != nil {
		return Result{}, apperrors.NewStoreError(fmt.Errorf("lock conversation: %w", err))
	}
	defer unlock()

	cur, err := d.store.Get(ctx, ev.ConversationID)
	if err != nil {
		return Result{}, apperrors.NewStoreError(fmt.Errorf("get state: %w", err))
	}

	res := Result{From: cur.Kind(), To: cur.Kind()}
	tr := d.translator(ev.Lang)
	out := d.decide(cur, ev, tr)

	if !out.handled {
		metrics.RecordUnhandledEvent(string(cur.Kind()), ev.Kind.String())
		log.Debug("event ignored", slog.Any("reason", apperrors.NewUnhandledEventError(string(cur.Kind()), ev.Kind.String())))

		if !d.unhandledHint {
			return res, nil
		}

		if err := d.send(ctx, ev.ConversationID, Reply{Text: d.text(tr, keyUseButtons, nil)}); err != nil {
			return res, err
		}
		res.Replied = true
		return res, nil
	}

	res.Handled = true
	next := out.next

	if !out.restart && !state.IsTransitionAllowed(cur.Kind(), next.Kind()) {
		return res, fmt.Errorf("%w: %s -> %s", state.ErrInvalidTransition, cur.Kind(), next.Kind())
	}

	if out.ack && ev.CallbackID != "" {
		if err := d.sender.Acknowledge(ctx, ev.CallbackID); err != nil {
			log.Warn("failed to acknowledge button press", slog.Any("error", err))
		} else {
			res.Acknowledged = true
		}
	}

	if err := d.store.Set(ctx, ev.ConversationID, next); err != nil {
		return res, apperrors.NewStoreError(fmt.Errorf("set state: %w", err))
	}
	res.To = next.Kind()

	if res.From != res.To {
		state.RecordTransition(res.From, res.To)
		log.Info("dialogue state changed", slog.String("from", string(res.From)), slog.String("to", string(res.To)))
	}

	if out.reply == nil {
		return res, nil
	}

	if err := d.send(ctx, ev.ConversationID, *out.reply); err != nil {
		return res, err
	}
	res.Replied = true

	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, id state.ConversationID, reply Reply) error {
	if err := d.sender.Send(ctx, id, reply); err != nil {
		metrics.RecordReply("error")
		if errors.Is(err, apperrors.ErrSendFailure) {
			return err
		}
		return apperrors.NewSendError(err)
	}

	metrics.RecordReply("ok")
	return nil
}

func (d *Dispatcher) translator(lang string) i18n.Translator {
	if d.catalog == nil {
		return nil
	}
	return d.catalog.Translator(lang)
}
