package memory

import (
	"context"
	"sync"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
)

// Store is an in-process implementation of app.Store.
type Store struct {
	mu           sync.Mutex
	plays        map[string]int
	sessions     map[string]domain.SessionState
	answers      map[string][]domain.AnswerEvent
	stats        map[string]domain.UserStats
	achievements map[string]map[string]domain.AchievementRecord
	order        map[string][]string
	history      map[string][]domain.SessionSummary
}

func NewStore() *Store {
	return &Store{
		plays:        make(map[string]int),
		sessions:     make(map[string]domain.SessionState),
		answers:      make(map[string][]domain.AnswerEvent),
		stats:        make(map[string]domain.UserStats),
		achievements: make(map[string]map[string]domain.AchievementRecord),
		order:        make(map[string][]string),
		history:      make(map[string][]domain.SessionSummary),
	}
}

func playKey(userID, day string) string {
	return userID + "|" + day
}

func (s *Store) CountPlays(_ context.Context, userID, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays[playKey(userID, day)], nil
}

func (s *Store) ClaimPlay(_ context.Context, userID, day string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := playKey(userID, day)
	if s.plays[key] >= limit {
		return false, nil
	}
	s.plays[key]++
	return true, nil
}

func (s *Store) SaveSession(_ context.Context, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = state.Clone()
	return nil
}

// Session returns the last saved snapshot of a session.
func (s *Store) Session(sessionID string) (domain.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[sessionID]
	return state.Clone(), ok
}

func (s *Store) RecordAnswer(_ context.Context, sessionID string, answer domain.AnswerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[sessionID] = append(s.answers[sessionID], answer)
	return nil
}

// Answers returns the answers recorded for a session, in order.
func (s *Store) Answers(sessionID string) []domain.AnswerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerEvent(nil), s.answers[sessionID]...)
}

func (s *Store) AddUserPoints(_ context.Context, userID string, points int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[userID]
	st.TotalPoints += points
	s.stats[userID] = st
	return st.TotalPoints, nil
}

func (s *Store) UnlockAchievementIfAbsent(_ context.Context, userID string, record domain.AchievementRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlocked, ok := s.achievements[userID]
	if !ok {
		unlocked = make(map[string]domain.AchievementRecord)
		s.achievements[userID] = unlocked
	}
	if _, exists := unlocked[record.Type]; exists {
		return false, nil
	}
	unlocked[record.Type] = record
	s.order[userID] = append(s.order[userID], record.Type)
	return true, nil
}

func (s *Store) AppendHistory(_ context.Context, userID string, summary domain.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary.Achievements = append([]string(nil), summary.Achievements...)
	h := append([]domain.SessionSummary{summary}, s.history[userID]...)
	if len(h) > app.HistoryLimit {
		h = h[:app.HistoryLimit]
	}
	s.history[userID] = h

	st := s.stats[userID]
	if summary.Status == domain.StatusCompleted {
		st.SessionsCompleted++
	}
	if summary.Perfect() {
		st.PerfectSessions++
	}
	s.stats[userID] = st
	return nil
}

func (s *Store) History(_ context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[userID]
	if limit > 0 && limit < len(h) {
		h = h[:limit]
	}
	return append([]domain.SessionSummary(nil), h...), nil
}

func (s *Store) Achievements(_ context.Context, userID string) ([]domain.AchievementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AchievementRecord, 0, len(s.order[userID]))
	for _, t := range s.order[userID] {
		out = append(out, s.achievements[userID][t])
	}
	return out, nil
}

func (s *Store) UserStats(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats[userID], nil
}
