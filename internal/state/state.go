package state

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrCorruptRecord indicates that a persisted record cannot be turned back into a State.
var ErrCorruptRecord = errors.New("corrupt dialogue state record")

// ConversationID identifies one chat with the bot.
type ConversationID int64

func (id ConversationID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Kind names a dialogue step without its payload.
type Kind string

const (
	// KindStart is the entry step, also used for conversations never seen before.
	KindStart Kind = "start"
	// KindAwaitingSymbol is set once the symbol choices were shown.
	KindAwaitingSymbol Kind = "awaiting_symbol"
	// KindAwaitingPeriod carries the chosen symbol while intervals are shown.
	KindAwaitingPeriod Kind = "awaiting_period"
	// KindAwaitingConfirmation carries symbol and interval while Submit is shown.
	KindAwaitingConfirmation Kind = "awaiting_confirmation"
)

// Kinds lists every dialogue step in flow order.
var Kinds = []Kind{
	KindStart,
	KindAwaitingSymbol,
	KindAwaitingPeriod,
	KindAwaitingConfirmation,
}

// State is the current dialogue step of a conversation.
// The set of implementations is closed: only the types below satisfy it.
type State interface {
	Kind() Kind
	sealed()
}

// Start is the initial step.
type Start struct{}

// AwaitingSymbol waits for a symbol button press.
type AwaitingSymbol struct{}

// AwaitingPeriod waits for an interval button press.
type AwaitingPeriod struct {
	Symbol string
}

// AwaitingConfirmation waits for the Submit button press.
type AwaitingConfirmation struct {
	Symbol string
	Period string
}

func (Start) Kind() Kind                { return KindStart }
func (AwaitingSymbol) Kind() Kind       { return KindAwaitingSymbol }
func (AwaitingPeriod) Kind() Kind       { return KindAwaitingPeriod }
func (AwaitingConfirmation) Kind() Kind { return KindAwaitingConfirmation }

func (Start) sealed()                {}
func (AwaitingSymbol) sealed()       {}
func (AwaitingPeriod) sealed()       {}
func (AwaitingConfirmation) sealed() {}

// Record is the stored form of a conversation state.
type Record struct {
	ConversationID ConversationID `json:"conversation_id"`
	Kind           Kind           `json:"kind"`
	Symbol         string         `json:"symbol,omitempty"`
	Period         string         `json:"period,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewRecord flattens st into a Record stamped with updatedAt.
func NewRecord(id ConversationID, st State, updatedAt time.Time) Record {
	rec := Record{
		ConversationID: id,
		Kind:           st.Kind(),
		UpdatedAt:      updatedAt,
	}

	switch s := st.(type) {
	case AwaitingPeriod:
		rec.Symbol = s.Symbol
	case AwaitingConfirmation:
		rec.Symbol = s.Symbol
		rec.Period = s.Period
	}

	return rec
}

// State rebuilds the State held by the record. Records missing a payload field are rejected.
func (r Record) State() (State, error) {
	switch r.Kind {
	case KindStart:
		return Start{}, nil
	case KindAwaitingSymbol:
		return AwaitingSymbol{}, nil
	case KindAwaitingPeriod:
		if r.Symbol == "" {
			return nil, fmt.Errorf("%w: %s without symbol", ErrCorruptRecord, r.Kind)
		}
		return AwaitingPeriod{Symbol: r.Symbol}, nil
	case KindAwaitingConfirmation:
		if r.Symbol == "" || r.Period == "" {
			return nil, fmt.Errorf("%w: %s without symbol or period", ErrCorruptRecord, r.Kind)
		}
		return AwaitingConfirmation{Symbol: r.Symbol, Period: r.Period}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCorruptRecord, r.Kind)
	}
}
