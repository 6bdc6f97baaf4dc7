package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/scoring"
)

// Session is the in-memory state machine for one attempt at the daily quiz.
// Every transition happens under mu; the writes a transition implies are
// queued and flushed by the service afterwards.
type Session struct {
	id         string
	now        func() time.Time
	budget     time.Duration
	calc       *scoring.Calculator
	store      Store
	rules      []AchievementRule
	firstOfDay bool

	mu          sync.Mutex
	state       domain.SessionState
	pending     []write
	stopWatch   context.CancelFunc
	subscribers map[chan domain.SessionState]struct{}

	flushMu sync.Mutex
}

// AnswerResult is what a caller learns from one submitted answer.
type AnswerResult struct {
	Answer             domain.AnswerEvent     `json:"answer"`
	Breakdown          domain.ScoreBreakdown  `json:"breakdown"`
	CorrectOptionIndex int                    `json:"correctOptionIndex"`
	Explanation        string                 `json:"explanation"`
	Progress           domain.Progress        `json:"progress"`
	Next               *domain.Question       `json:"next,omitempty"`
	Finished           bool                   `json:"finished"`
	Status             domain.SessionStatus   `json:"status"`
	Summary            *domain.SessionSummary `json:"summary,omitempty"`
}

type sessionDeps struct {
	now    func() time.Time
	budget time.Duration
	calc   *scoring.Calculator
	store  Store
	rules  []AchievementRule
}

func newSession(id, userID, day string, deps sessionDeps) *Session {
	return &Session{
		id:     id,
		now:    deps.now,
		budget: deps.budget,
		calc:   deps.calc,
		store:  deps.store,
		rules:  deps.rules,
		state: domain.SessionState{
			SessionID: id,
			UserID:    userID,
			Day:       day,
			Status:    domain.StatusReady,
		},
		subscribers: make(map[chan domain.SessionState]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UserID
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Progress reports how far the session got.
func (s *Session) Progress() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// Finished reports whether the session reached Completed or TimedOut.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status.Finished()
}

func (s *Session) progressLocked() domain.Progress {
	return s.state.Progress()
}

// start moves Ready to InProgress with the generated questions.
func (s *Session) start(day string, questions []domain.Question, sampleData, firstOfDay bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != domain.StatusReady {
		return &domain.TransitionError{Op: "start", Status: s.state.Status}
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestionsAvailable
	}

	now := s.now()
	s.state.Status = domain.StatusInProgress
	s.state.Day = day
	s.state.Questions = questions
	s.state.CurrentIndex = 0
	s.state.Answers = nil
	s.state.SampleData = sampleData
	s.state.StartedAt = &now
	s.firstOfDay = firstOfDay

	s.enqueueSaveLocked()
	return nil
}

// submit scores an answer to the current question. A rejected answer leaves
// the state untouched.
func (s *Session) submit(sub domain.AnswerSubmission) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != domain.StatusInProgress {
		return AnswerResult{}, &domain.TransitionError{Op: "submit", Status: s.state.Status}
	}
	q, ok := s.state.CurrentQuestion()
	if !ok {
		return AnswerResult{}, &domain.TransitionError{Op: "submit", Status: s.state.Status}
	}
	if sub.QuestionIndex != s.state.CurrentIndex {
		return AnswerResult{}, fmt.Errorf("%w: got question %d, current is %d", domain.ErrQuestionMismatch, sub.QuestionIndex, s.state.CurrentIndex)
	}
	if !q.IsValidOption(sub.SelectedOptionIndex) {
		return AnswerResult{}, fmt.Errorf("%w: option %d of %d", domain.ErrInvalidAnswerIndex, sub.SelectedOptionIndex, len(q.Options))
	}

	now := s.now()
	correct := q.IsCorrect(sub.SelectedOptionIndex)
	breakdown := s.calc.Score(scoring.Input{
		IsCorrect:   correct,
		TimeTakenMs: sub.TimeTakenMs,
		Difficulty:  q.Difficulty,
		PointsBase:  q.PointsBase,
		ComboBefore: s.state.Combo,
	})

	s.state.Combo = scoring.NextCombo(s.state.Combo, correct)
	if s.state.Combo > s.state.MaxCombo {
		s.state.MaxCombo = s.state.Combo
	}
	event := domain.AnswerEvent{
		QuestionID:          q.ID,
		SelectedOptionIndex: sub.SelectedOptionIndex,
		IsCorrect:           correct,
		TimeTakenMs:         sub.TimeTakenMs,
		ScoreAwarded:        breakdown.Total,
		AnsweredAt:          now,
	}
	s.state.Answers = append(s.state.Answers, event)
	s.state.TotalScore += breakdown.Total
	s.state.CurrentIndex++

	s.enqueueLocked("record answer", func(ctx context.Context) error {
		return s.store.RecordAnswer(ctx, s.id, event)
	})

	switch {
	case s.state.CurrentIndex == len(s.state.Questions) && s.expiredLocked(now):
		s.finishLocked(domain.StatusTimedOut, now)
	case s.state.CurrentIndex == len(s.state.Questions):
		s.finishLocked(domain.StatusCompleted, now)
	case s.expiredLocked(now):
		s.finishLocked(domain.StatusTimedOut, now)
	default:
		s.enqueueSaveLocked()
	}

	result := AnswerResult{
		Answer:             event,
		Breakdown:          breakdown,
		CorrectOptionIndex: q.CorrectOptionIndex,
		Explanation:        q.Explanation,
		Progress:           s.progressLocked(),
		Finished:           s.state.Status.Finished(),
		Status:             s.state.Status,
	}
	if next, ok := s.state.CurrentQuestion(); ok && !result.Finished {
		next.Options = append([]string(nil), next.Options...)
		result.Next = &next
	}
	return result, nil
}

// expire times the session out once its budget has elapsed. It reports
// whether a transition happened.
func (s *Session) expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != domain.StatusInProgress {
		return false
	}
	now := s.now()
	if !s.expiredLocked(now) {
		return false
	}
	s.finishLocked(domain.StatusTimedOut, now)
	return true
}

func (s *Session) expiredLocked(now time.Time) bool {
	if s.state.StartedAt == nil || s.budget <= 0 {
		return false
	}
	return now.Sub(*s.state.StartedAt) >= s.budget
}

func (s *Session) finishLocked(status domain.SessionStatus, now time.Time) {
	s.state.Status = status
	s.state.EndedAt = &now
	s.state.CurrentIndex = len(s.state.Questions)
	s.stopWatcherLocked()

	sum := s.calc.Summarize(scoring.SessionInput{
		Status:     status,
		Questions:  s.state.Questions,
		Answers:    s.state.Answers,
		MaxCombo:   s.state.MaxCombo,
		FirstOfDay: s.firstOfDay,
	})
	sum.SessionID = s.id
	sum.UserID = s.state.UserID
	sum.Day = s.state.Day
	sum.EndedAt = now
	if s.state.StartedAt != nil {
		sum.StartedAt = *s.state.StartedAt
		sum.DurationMs = now.Sub(*s.state.StartedAt).Milliseconds()
	}
	s.state.TotalScore = sum.TotalScore
	s.state.Summary = &sum

	s.enqueueSaveLocked()
	s.enqueueFinalizeLocked(sum)
}

// enqueueFinalizeLocked queues the archival writes of a finished session:
// points, history, then achievement evaluation.
func (s *Session) enqueueFinalizeLocked(sum domain.SessionSummary) {
	userID := s.state.UserID
	s.enqueueLocked("add points", func(ctx context.Context) error {
		_, err := s.store.AddUserPoints(ctx, userID, sum.TotalScore)
		return err
	})
	s.enqueueLocked("append history", func(ctx context.Context) error {
		return s.store.AppendHistory(ctx, userID, sum)
	})
	s.enqueueLocked("evaluate achievements", func(ctx context.Context) error {
		stats, err := s.store.UserStats(ctx, userID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, record := range eligible(s.rules, sum, stats) {
			s.enqueueUnlockLocked(userID, record)
		}
		s.enqueueSaveLocked()
		return nil
	})
}

// enqueueUnlockLocked queues an idempotent unlock followed by its reward.
// The closure remembers progress so a retry never rewards twice.
func (s *Session) enqueueUnlockLocked(userID string, record domain.AchievementRecord) {
	var unlocked, settled bool
	s.enqueueLocked("unlock "+record.Type, func(ctx context.Context) error {
		if settled {
			return nil
		}
		if !unlocked {
			rec := record
			rec.UnlockedAt = s.now()
			created, err := s.store.UnlockAchievementIfAbsent(ctx, userID, rec)
			if err != nil {
				return err
			}
			if !created {
				settled = true
				return nil
			}
			unlocked = true
			s.mu.Lock()
			if s.state.Summary != nil {
				s.state.Summary.Achievements = append(s.state.Summary.Achievements, record.Type)
			}
			s.mu.Unlock()
		}
		if record.PointsReward > 0 {
			if _, err := s.store.AddUserPoints(ctx, userID, record.PointsReward); err != nil {
				return err
			}
		}
		settled = true
		return nil
	})
}

func (s *Session) enqueueSaveLocked() {
	s.enqueueLocked("save session", func(ctx context.Context) error {
		return s.store.SaveSession(ctx, s.Snapshot())
	})
}

// setWatcher records the cancel func of the timeout watcher.
func (s *Session) setWatcher(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatcherLocked()
	s.stopWatch = cancel
}

func (s *Session) stopWatcher() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatcherLocked()
}

func (s *Session) stopWatcherLocked() {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
}

func (s *Session) subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 4)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.state.Clone()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// publish pushes the current state to subscribers. A slow subscriber loses
// its stale update instead of blocking the session.
func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.Clone()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
