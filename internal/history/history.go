// Package history keeps a bounded in-memory log of conversation turns per
// session.
package history

import (
	"sync"
	"time"
)

// DefaultMaxTurns is the number of turns retained per session
const DefaultMaxTurns = 50

// Turn is one exchange entry
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store retains the most recent turns of every session. It is safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]Turn
}

// New creates a store keeping at most maxTurns per session
func New(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{maxTurns: maxTurns, sessions: make(map[string][]Turn)}
}

// Append adds a turn, dropping the oldest ones beyond the limit
func (s *Store) Append(session string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[session], turn)
	if excess := len(turns) - s.maxTurns; excess > 0 {
		// copy so the dropped prefix can be collected
		turns = append([]Turn(nil), turns[excess:]...)
	}
	s.sessions[session] = turns
}

// Recent returns up to n of the latest turns, oldest first. n <= 0 returns all.
func (s *Store) Recent(session string, n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[session]
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]Turn(nil), turns...)
}

// Len returns the number of turns held for session
func (s *Store) Len(session string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[session])
}

// Clear forgets a session
func (s *Store) Clear(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
}
