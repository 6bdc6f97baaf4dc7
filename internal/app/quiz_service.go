package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/scoring"
)

// GameConfig is the canonical rule set of the daily quiz.
type GameConfig struct {
	Window        Window
	Location      *time.Location
	DailyLimit    int
	MinQuestions  int
	MaxQuestions  int
	SessionBudget time.Duration
	TickInterval  time.Duration
}

// DefaultGameConfig returns the 21:00-23:00, once-a-day, 3 to 5 question game.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Window:        Window{StartHour: 21, EndHour: 23},
		Location:      time.Local,
		DailyLimit:    1,
		MinQuestions:  3,
		MaxQuestions:  5,
		SessionBudget: 300 * time.Second,
		TickInterval:  time.Second,
	}
}

// QuizService contains the daily quiz use cases.
type QuizService struct {
	cfg       GameConfig
	sessions  SessionRepository
	store     Store
	activity  ActivitySource
	questions QuestionGenerator
	calc      *scoring.Calculator
	rules     []AchievementRule
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic time.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRand seeds the question count draw.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

func WithCalculator(calc *scoring.Calculator) Option {
	return func(s *QuizService) { s.calc = calc }
}

func WithAchievements(rules []AchievementRule) Option {
	return func(s *QuizService) { s.rules = rules }
}

func WithSessionIDs(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(cfg GameConfig, sessions SessionRepository, store Store, activity ActivitySource, questions QuestionGenerator, opts ...Option) *QuizService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 1
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxQuestions < cfg.MinQuestions {
		cfg.MaxQuestions = cfg.MinQuestions
	}

	s := &QuizService{
		cfg:       cfg,
		sessions:  sessions,
		store:     store,
		activity:  activity,
		questions: questions,
		calc:      scoring.NewCalculator(scoring.DefaultConfig()),
		rules:     DefaultAchievements(),
		now:       time.Now,
		newID:     uuid.NewString,
		log:       zerolog.Nop(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open runs the daily gate and registers a Ready session. When the gate refuses,
// the returned state carries the refusal status and the error is an *domain.AvailabilityError.
func (s *QuizService) Open(ctx context.Context, userID string) (domain.SessionState, error) {
	a, err := s.CheckAvailability(ctx, userID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if a.Status != domain.StatusReady {
		return domain.SessionState{UserID: userID, Day: a.Day, Status: a.Status}, availabilityErr(a)
	}

	session := newSession(s.newID(), userID, a.Day, sessionDeps{
		now:    s.now,
		budget: s.cfg.SessionBudget,
		calc:   s.calc,
		store:  s.store,
		rules:  s.rules,
	})
	s.sessions.Put(session)
	s.log.Info().Str("session_id", session.ID()).Str("user_id", userID).Msg("session opened")
	return session.Snapshot(), nil
}

// Start generates the questions and moves a Ready session to InProgress.
// The daily limit is re-validated atomically against the store before the transition.
func (s *QuizService) Start(ctx context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	snap := session.Snapshot()
	if snap.Status != domain.StatusReady {
		return snap, &domain.TransitionError{Op: "start", Status: snap.Status}
	}

	now := s.localNow()
	day := now.Format(DayLayout)
	if !s.cfg.Window.Contains(now) {
		a := s.evaluate(now, 0)
		return snap, availabilityErr(a)
	}

	records, err := s.activity.TodayActivity(ctx, snap.UserID, day)
	if err != nil {
		return snap, fmt.Errorf("%w: load activity: %v", domain.ErrPersistence, err)
	}
	questions, err := s.questions.Generate(records, s.questionCount())
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("question generation failed")
		return snap, err
	}
	if len(questions) == 0 {
		return snap, domain.ErrNoQuestionsAvailable
	}

	history, err := s.store.History(ctx, snap.UserID, HistoryLimit)
	if err != nil {
		return snap, fmt.Errorf("%w: read history: %v", domain.ErrPersistence, err)
	}
	firstOfDay := !completedOn(history, day)

	claimed, err := s.store.ClaimPlay(ctx, snap.UserID, day, s.cfg.DailyLimit)
	if err != nil {
		return snap, fmt.Errorf("%w: claim play: %v", domain.ErrPersistence, err)
	}
	if !claimed {
		return snap, availabilityErr(s.evaluate(now, s.cfg.DailyLimit))
	}

	if err := session.start(day, questions, len(records) == 0, firstOfDay); err != nil {
		return session.Snapshot(), err
	}
	s.watch(session)
	s.log.Info().
		Str("session_id", sessionID).
		Str("user_id", snap.UserID).
		Int("questions", len(questions)).
		Bool("sample_data", len(records) == 0).
		Msg("session started")

	err = s.flushAndPublish(ctx, session)
	return session.Snapshot(), err
}

// SubmitAnswer scores the answer to the current question. On a persistence
// failure the in-memory result is still returned along with an error matching
// domain.ErrPersistence; Flush retries the outstanding writes.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, submission domain.AnswerSubmission) (AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return AnswerResult{}, domain.ErrSessionNotFound
	}

	result, err := session.submit(submission)
	if err != nil {
		return AnswerResult{}, err
	}

	err = s.flushAndPublish(ctx, session)
	if result.Finished {
		result.Summary = session.Snapshot().Summary
		s.logFinished(result.Summary)
	}
	return result, err
}

// Tick times the session out if its budget elapsed. It reports whether the
// session transitioned.
func (s *QuizService) Tick(ctx context.Context, sessionID string) (bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	return s.tick(ctx, session)
}

func (s *QuizService) tick(ctx context.Context, session *Session) (bool, error) {
	if !session.expire() {
		return false, nil
	}
	err := s.flushAndPublish(ctx, session)
	s.logFinished(session.Snapshot().Summary)
	return true, err
}

// watch runs the periodic timeout check until the session leaves InProgress
// or is released.
func (s *QuizService) watch(session *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	session.setWatcher(cancel)

	go func() {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// finishing cancels ctx, so writes get their own context
				if _, err := s.tick(context.Background(), session); err != nil {
					s.log.Warn().Err(err).Str("session_id", session.ID()).Msg("timeout flush failed")
				}
			}
		}
	}()
}

// Flush retries writes left behind by an earlier persistence failure.
func (s *QuizService) Flush(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return s.flushAndPublish(ctx, session)
}

func (s *QuizService) flushAndPublish(ctx context.Context, session *Session) error {
	err := session.flush(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID()).Int("pending", session.Pending()).Msg("persistence failed")
	}
	session.publish()
	return err
}

// Subscribe returns a channel of session snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionState, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Release abandons or retires a session: outstanding writes are flushed, the
// watcher stops, and the session leaves the registry. If the flush fails the
// session stays registered, still timing out on schedule, so the caller can retry.
func (s *QuizService) Release(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	if err := session.flush(ctx); err != nil {
		return err
	}
	session.stopWatcher()
	// a timeout may have queued writes between the flush and the stop
	if err := session.flush(ctx); err != nil {
		if session.Snapshot().Status == domain.StatusInProgress {
			s.watch(session)
		}
		return err
	}
	session.closeSubscribers()
	s.sessions.Delete(sessionID)
	s.log.Debug().Str("session_id", sessionID).Msg("session released")
	return nil
}

// State returns a snapshot of a live session.
func (s *QuizService) State(_ context.Context, sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

func (s *QuizService) Progress(_ context.Context, sessionID string) (domain.Progress, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Progress{}, domain.ErrSessionNotFound
	}
	return session.Progress(), nil
}

// History returns the user's most recent summaries, newest first.
func (s *QuizService) History(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	history, err := s.store.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", domain.ErrPersistence, err)
	}
	return history, nil
}

func (s *QuizService) Achievements(ctx context.Context, userID string) ([]domain.AchievementRecord, error) {
	records, err := s.store.Achievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: read achievements: %v", domain.ErrPersistence, err)
	}
	return records, nil
}

func (s *QuizService) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("%w: read stats: %v", domain.ErrPersistence, err)
	}
	return stats, nil
}

// LiveSessions reports how many sessions this process holds.
func (s *QuizService) LiveSessions() int {
	return s.sessions.Len()
}

// completedOn reports whether history holds a completed session played on day.
func completedOn(history []domain.SessionSummary, day string) bool {
	for _, sum := range history {
		if sum.Day == day && sum.Status == domain.StatusCompleted {
			return true
		}
	}
	return false
}

func (s *QuizService) questionCount() int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.cfg.MinQuestions + s.rnd.Intn(s.cfg.MaxQuestions-s.cfg.MinQuestions+1)
}

func (s *QuizService) logFinished(sum *domain.SessionSummary) {
	if sum == nil {
		return
	}
	s.log.Info().
		Str("session_id", sum.SessionID).
		Str("user_id", sum.UserID).
		Str("status", string(sum.Status)).
		Int("answered", sum.AnsweredQuestions).
		Int("total_questions", sum.TotalQuestions).
		Int("score", sum.TotalScore).
		Str("grade", sum.Grade).
		Strs("achievements", sum.Achievements).
		Msg("session finished")
}
