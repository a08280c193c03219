package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps dialogue state in process memory. It never fails.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[ConversationID]Record
	now     func() time.Time
}

var (
	_ Storage   = (*MemoryStorage)(nil)
	_ Inspector = (*MemoryStorage)(nil)
)

// NewMemoryStorage constructs an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[ConversationID]Record),
		now:     time.Now,
	}
}

// Get returns the stored state or Start when the conversation is unknown.
func (s *MemoryStorage) Get(_ context.Context, id ConversationID) (State, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return Start{}, nil
	}

	return rec.State()
}

// Set overwrites the state for the conversation.
func (s *MemoryStorage) Set(_ context.Context, id ConversationID, st State) error {
	if st == nil {
		return ErrNilState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = NewRecord(id, st, s.now().UTC())
	return nil
}

// Clear removes the conversation entry.
func (s *MemoryStorage) Clear(_ context.Context, id ConversationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// List returns a snapshot of all records.
func (s *MemoryStorage) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, rec)
	}

	return result, nil
}

// Lookup returns the record for the conversation if present.
func (s *MemoryStorage) Lookup(_ context.Context, id ConversationID) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok, nil
}
