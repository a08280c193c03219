// Package state holds the dialogue state of every conversation and the locks that serialize its updates.
package state

import (
	"context"
	"errors"
)

// ErrNilState is returned when a nil State is written.
var ErrNilState = errors.New("state must not be nil")

// Storage defines the persistence contract for dialogue state.
type Storage interface {
	// Get returns the current state for the conversation, or Start when none is recorded.
	Get(ctx context.Context, id ConversationID) (State, error)
	// Set overwrites the state for the conversation. Last write wins.
	Set(ctx context.Context, id ConversationID, st State) error
	// Clear removes the state for the conversation.
	Clear(ctx context.Context, id ConversationID) error
}

// Inspector exposes stored records together with their metadata.
type Inspector interface {
	// List returns every stored record.
	List(ctx context.Context) ([]Record, error)
	// Lookup returns the record for the conversation and whether it exists.
	Lookup(ctx context.Context, id ConversationID) (Record, bool, error)
}
