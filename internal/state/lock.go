package state

import (
	"context"
	"sync"
)

// Locker serializes work on a single conversation.
type Locker interface {
	// Lock blocks until the caller owns the conversation or ctx ends.
	// The returned func releases ownership and is safe to call more than once.
	Lock(ctx context.Context, id ConversationID) (func(), error)
}

// Sequencer is an in-process FIFO lock keyed by conversation.
// Callers acquire a conversation in the order they called Lock;
// conversations are independent of each other.
type Sequencer struct {
	mu     sync.Mutex
	tails  map[ConversationID]*ticket
	queued map[ConversationID]int
}

type ticket struct {
	done chan struct{}
}

var _ Locker = (*Sequencer)(nil)

// NewSequencer constructs an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		tails:  make(map[ConversationID]*ticket),
		queued: make(map[ConversationID]int),
	}
}

// Lock waits for every earlier holder of id to release it.
func (s *Sequencer) Lock(ctx context.Context, id ConversationID) (func(), error) {
	cur := &ticket{done: make(chan struct{})}

	s.mu.Lock()
	prev := s.tails[id]
	s.tails[id] = cur
	s.queued[id]++
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			// Our ticket is already linked into the chain; pass the turn on once
			// the predecessor is done so later callers keep their order.
			go func() {
				<-prev.done
				s.release(id, cur)
			}()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.release(id, cur) })
	}, nil
}

func (s *Sequencer) release(id ConversationID, cur *ticket) {
	close(cur.done)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tails[id] == cur {
		delete(s.tails, id)
	}

	s.queued[id]--
	if s.queued[id] <= 0 {
		delete(s.queued, id)
	}
}

// queueLen reports holders plus waiters for id.
func (s *Sequencer) queueLen(id ConversationID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued[id]
}
