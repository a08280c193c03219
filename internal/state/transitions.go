package state

import (
	"errors"
	"sync"
)

// ErrInvalidTransition indicates that a requested step change is not part of the flow.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions contains the steps reachable from each step through the regular flow.
var validTransitions = map[Kind][]Kind{
	KindStart: {
		KindAwaitingSymbol,
	},
	KindAwaitingSymbol: {
		KindAwaitingPeriod,
	},
	KindAwaitingPeriod: {
		KindAwaitingConfirmation,
	},
	KindAwaitingConfirmation: {},
}

var (
	recorderMu         sync.RWMutex
	transitionRecorder = func(from, to string) {}
)

// RegisterTransitionRecorder allows external packages to observe dialogue transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	recorderMu.Lock()
	defer recorderMu.Unlock()

	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// RecordTransition reports a completed step change to the registered recorder.
func RecordTransition(from, to Kind) {
	recorderMu.RLock()
	recorder := transitionRecorder
	recorderMu.RUnlock()

	recorder(string(from), string(to))
}

// IsTransitionAllowed reports whether the flow may move from one step to another.
// Staying on the same step is always allowed.
func IsTransitionAllowed(from, to Kind) bool {
	if from == to {
		return true
	}

	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}
