package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/pairpicker-bot/internal/state"
)

const defaultCollectInterval = 10 * time.Second

var (
	botEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Total number of bot events received labeled by event kind and status",
		},
		[]string{"kind", "status"},
	)
	eventDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_duration_seconds",
			Help:    "Duration of bot event handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of dialogue state transitions",
		},
		[]string{"from", "to"},
	)
	unhandledEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unhandled_events_total",
			Help: "Total number of events ignored in the current dialogue state",
		},
		[]string{"state", "kind"},
	)
	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replies_total",
			Help: "Total number of replies sent to Telegram split by status",
		},
		[]string{"status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	droppedUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropped_updates_total",
			Help: "Total number of updates dropped before the dialogue, split by reason",
		},
		[]string{"reason"},
	)
	activeConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_conversations",
			Help: "Current number of conversations with a stored state",
		},
	)
	conversationsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conversations_by_state",
			Help: "Number of conversations per dialogue state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordEvent increments event counters and records duration.
func RecordEvent(kind, status string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botEventsTotal.WithLabelValues(kind, status).Inc()
	eventDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDroppedUpdate counts an update discarded by rate limiting or de-duplication.
func RecordDroppedUpdate(reason string) {
	droppedUpdatesTotal.WithLabelValues(reason).Inc()
}

// RecordStateTransition tracks dialogue transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordUnhandledEvent counts events the current state ignored.
func RecordUnhandledEvent(stateKind, eventKind string) {
	if stateKind == "" {
		stateKind = "unknown"
	}
	if eventKind == "" {
		eventKind = "unknown"
	}

	unhandledEventsTotal.WithLabelValues(stateKind, eventKind).Inc()
}

// RecordReply counts delivery attempts of replies.
func RecordReply(status string) {
	if status == "" {
		status = "unknown"
	}

	repliesTotal.WithLabelValues(status).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// SetActiveConversations updates the gauge for conversations with stored state.
func SetActiveConversations(count int) {
	activeConversations.Set(float64(count))
}

// SetConversationsByState updates the gauge for the given state.
func SetConversationsByState(kind string, count int) {
	if kind == "" {
		kind = "unknown"
	}

	conversationsByState.WithLabelValues(kind).Set(float64(count))
}

// StateCollector periodically gathers dialogue state counts and emits gauge metrics.
type StateCollector struct {
	inspector state.Inspector
	log       *slog.Logger
	interval  time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided store.
func NewStateCollector(inspector state.Inspector, log *slog.Logger, interval time.Duration) *StateCollector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = defaultCollectInterval
	}

	return &StateCollector{inspector: inspector, log: log, interval: interval}
}

// Run polls the store every interval, updating gauges until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.inspector == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := c.collect(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("state metrics collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	records, err := c.inspector.List(ctx)
	if err != nil {
		return err
	}

	SetActiveConversations(len(records))

	counts := make(map[string]int, len(records))
	for _, rec := range records {
		label := "unknown"
		if rec.Kind != "" {
			label = string(rec.Kind)
		}
		counts[label]++
	}

	conversationsByState.Reset()

	for _, tracked := range state.Kinds {
		label := string(tracked)
		SetConversationsByState(label, counts[label])
		delete(counts, label)
	}

	for label, count := range counts {
		SetConversationsByState(label, count)
	}

	return nil
}
