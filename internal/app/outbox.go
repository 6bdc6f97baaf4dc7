package app

import (
	"context"
	"fmt"

	"daily-quiz-service/internal/domain"
)

// write is one persistence call implied by a committed transition.
type write struct {
	name string
	run  func(ctx context.Context) error
}

func (s *Session) enqueueLocked(name string, run func(ctx context.Context) error) {
	s.pending = append(s.pending, write{name: name, run: run})
}

// Pending reports how many writes are still waiting to be flushed.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// flush runs queued writes in order. The first failure stops the flush and
// leaves it and everything after it queued for the next attempt.
func (s *Session) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return nil
		}
		w := s.pending[0]
		s.mu.Unlock()

		if err := w.run(ctx); err != nil {
			return fmt.Errorf("%w: %s for session %s: %v", domain.ErrPersistence, w.name, s.id, err)
		}

		s.mu.Lock()
		s.pending = s.pending[1:]
		s.mu.Unlock()
	}
}
