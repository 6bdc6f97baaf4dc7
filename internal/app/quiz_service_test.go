package app_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/infra/memory"
	"daily-quiz-service/internal/questiongen"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedGenerator struct {
	questions []domain.Question
}

func (g fixedGenerator) Generate(_ []domain.ActivityRecord, count int) ([]domain.Question, error) {
	if count > len(g.questions) {
		count = len(g.questions)
	}
	return append([]domain.Question(nil), g.questions[:count]...), nil
}

type flakyStore struct {
	*memory.Store
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyStore) RecordAnswer(ctx context.Context, sessionID string, answer domain.AnswerEvent) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("connection refused")
	}
	return f.Store.RecordAnswer(ctx, sessionID, answer)
}

type harness struct {
	service  *app.QuizService
	store    *flakyStore
	sessions *memory.SessionStore
	clock    *fakeClock
}

func easyQuestions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			ID:                 string(rune('a' + i)),
			Prompt:             "How much did you spend?",
			Options:            []string{"470", "235", "376", "940"},
			CorrectOptionIndex: 0,
			Difficulty:         domain.DifficultyEasy,
			PointsBase:         10,
			Explanation:        "You spent 470.",
		}
	}
	return out
}

func newHarness(t *testing.T, questions int, mutate ...func(*app.GameConfig)) *harness {
	t.Helper()
	cfg := app.DefaultGameConfig()
	cfg.Location = time.UTC
	cfg.MinQuestions = questions
	cfg.MaxQuestions = questions
	cfg.TickInterval = time.Hour
	for _, m := range mutate {
		m(&cfg)
	}

	clock := &fakeClock{now: time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)}
	store := &flakyStore{Store: memory.NewStore()}
	sessions := memory.NewSessionStore()
	activity := memory.NewActivityRepository(memory.NewStaticActivityLoader(time.UTC), time.Minute)

	service := app.NewQuizService(cfg, sessions, store, activity, fixedGenerator{questions: easyQuestions(questions)},
		app.WithClock(clock.Now),
		app.WithRand(rand.New(rand.NewSource(1))),
	)
	return &harness{service: service, store: store, sessions: sessions, clock: clock}
}

func (h *harness) startSession(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()
	state, err := h.service.Open(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusReady, state.Status)

	state, err = h.service.Start(ctx, state.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInProgress, state.Status)
	t.Cleanup(func() { _ = h.service.Release(context.Background(), state.SessionID) })
	return state.SessionID
}

func answer(index, option int) domain.AnswerSubmission {
	return domain.AnswerSubmission{QuestionIndex: index, SelectedOptionIndex: option, TimeTakenMs: 3000}
}

func TestCompletedSessionScoresAndUnlocks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	id := h.startSession(t, "u1")

	var totals []int
	var last app.AnswerResult
	for i := 0; i < 3; i++ {
		res, err := h.service.SubmitAnswer(ctx, id, answer(i, 0))
		require.NoError(t, err)
		totals = append(totals, res.Breakdown.Total)
		last = res
	}
	assert.Equal(t, []int{14, 16, 19}, totals)

	require.True(t, last.Finished)
	assert.Equal(t, domain.StatusCompleted, last.Status)
	require.NotNil(t, last.Summary)
	sum := last.Summary
	assert.Equal(t, 49, sum.AnswerPoints)
	assert.Equal(t, 20, sum.PerfectBonus)
	assert.Equal(t, 10, sum.FirstOfDayBonus)
	assert.Equal(t, 79, sum.TotalScore)
	assert.Equal(t, 3, sum.MaxCombo)
	assert.Equal(t, []string{"first_session", "daily_challenge", "perfect_game", "combo_master"}, sum.Achievements)

	state, err := h.service.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, len(state.Questions), state.CurrentIndex)
	assert.NotNil(t, state.EndedAt)

	_, err = h.service.SubmitAnswer(ctx, id, answer(3, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stats, err := h.service.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 79+10+10+50+30, stats.TotalPoints)
	assert.Equal(t, 1, stats.SessionsCompleted)
	assert.Equal(t, 1, stats.PerfectSessions)

	history, err := h.service.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].SessionID)

	saved, ok := h.store.Session(id)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
	require.NotNil(t, saved.Summary)
	assert.Len(t, saved.Summary.Achievements, 4)
	assert.Len(t, h.store.Answers(id), 3)
}

func TestSubmitRejectionsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)

	opened, err := h.service.Open(ctx, "u1")
	require.NoError(t, err)
	_, err = h.service.SubmitAnswer(ctx, opened.SessionID, answer(0, 0))
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusReady, terr.Status)

	_, err = h.service.Start(ctx, opened.SessionID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.service.Release(context.Background(), opened.SessionID) })
	before, _ := h.service.State(ctx, opened.SessionID)

	_, err = h.service.SubmitAnswer(ctx, opened.SessionID, answer(1, 0))
	assert.ErrorIs(t, err, domain.ErrQuestionMismatch)
	_, err = h.service.SubmitAnswer(ctx, opened.SessionID, answer(0, 4))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswerIndex)
	_, err = h.service.SubmitAnswer(ctx, opened.SessionID, answer(0, -1))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswerIndex)

	after, _ := h.service.State(ctx, opened.SessionID)
	assert.Equal(t, before, after)

	_, err = h.service.Start(ctx, opened.SessionID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.service.SubmitAnswer(ctx, "missing", answer(0, 0))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestComboResetsOnMiss(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 4)
	id := h.startSession(t, "u1")

	var combos []int
	for i, option := range []int{0, 2, 0, 0} {
		res, err := h.service.SubmitAnswer(ctx, id, answer(i, option))
		require.NoError(t, err)
		combos = append(combos, res.Progress.Combo)
	}
	assert.Equal(t, []int{1, 0, 1, 2}, combos)

	state, _ := h.service.State(ctx, id)
	assert.Equal(t, 2, state.MaxCombo)
	require.NotNil(t, state.Summary)
	assert.Zero(t, state.Summary.PerfectBonus)
	assert.Equal(t, 3, state.Summary.CorrectCount)
}

func TestTimeoutAfterTwoOfFourAnswers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 4)
	id := h.startSession(t, "u1")

	for i := 0; i < 2; i++ {
		_, err := h.service.SubmitAnswer(ctx, id, answer(i, 0))
		require.NoError(t, err)
	}

	moved, err := h.service.Tick(ctx, id)
	require.NoError(t, err)
	assert.False(t, moved)

	h.clock.Advance(301 * time.Second)
	moved, err = h.service.Tick(ctx, id)
	require.NoError(t, err)
	assert.True(t, moved)

	state, _ := h.service.State(ctx, id)
	assert.Equal(t, domain.StatusTimedOut, state.Status)
	assert.Equal(t, 4, state.CurrentIndex)
	require.NotNil(t, state.Summary)
	assert.Equal(t, 2, state.Summary.AnsweredQuestions)
	assert.Equal(t, 4, state.Summary.TotalQuestions)
	assert.Zero(t, state.Summary.PerfectBonus)
	assert.Zero(t, state.Summary.FirstOfDayBonus)
	assert.Equal(t, 14+16, state.Summary.TotalScore)

	_, err = h.service.SubmitAnswer(ctx, id, answer(2, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	moved, _ = h.service.Tick(ctx, id)
	assert.False(t, moved)
}

func TestLateFinalAnswerTimesOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	id := h.startSession(t, "u1")

	_, err := h.service.SubmitAnswer(ctx, id, answer(0, 0))
	require.NoError(t, err)
	_, err = h.service.SubmitAnswer(ctx, id, answer(1, 0))
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	res, err := h.service.SubmitAnswer(ctx, id, answer(2, 0))
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.Equal(t, domain.StatusTimedOut, res.Status)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 3, res.Summary.AnsweredQuestions)
	assert.Zero(t, res.Summary.FirstOfDayBonus)
}

func TestAvailabilityGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)

	h.clock.now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first, err := h.service.CheckAvailability(ctx, "u1")
	require.NoError(t, err)
	second, _ := h.service.CheckAvailability(ctx, "u1")
	assert.Equal(t, first, second)
	assert.Equal(t, domain.StatusNotAvailable, first.Status)
	require.NotNil(t, first.NextAvailableTime)
	assert.Equal(t, time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC), *first.NextAvailableTime)

	state, err := h.service.Open(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrTimeRestricted)
	assert.Equal(t, domain.StatusNotAvailable, state.Status)
	var aerr *domain.AvailabilityError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, first, aerr.Availability)
	assert.Zero(t, h.sessions.Len())

	h.clock.now = time.Date(2024, 5, 1, 23, 15, 0, 0, time.UTC)
	late, _ := h.service.CheckAvailability(ctx, "u1")
	assert.Equal(t, domain.StatusNotAvailable, late.Status)
	assert.Equal(t, time.Date(2024, 5, 2, 21, 0, 0, 0, time.UTC), *late.NextAvailableTime)

	h.clock.now = time.Date(2024, 5, 1, 21, 5, 0, 0, time.UTC)
	ready, _ := h.service.CheckAvailability(ctx, "u1")
	assert.Equal(t, domain.StatusReady, ready.Status)
	assert.Nil(t, ready.NextAvailableTime)
}

func TestAlreadyPlayedToday(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	id := h.startSession(t, "u1")
	for i := 0; i < 3; i++ {
		_, err := h.service.SubmitAnswer(ctx, id, answer(i, 0))
		require.NoError(t, err)
	}

	a, err := h.service.CheckAvailability(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, a.Status)
	assert.Equal(t, time.Date(2024, 5, 2, 21, 0, 0, 0, time.UTC), *a.NextAvailableTime)

	state, err := h.service.Open(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyPlayedToday)
	assert.Equal(t, domain.StatusCompleted, state.Status)

	// another user is unaffected
	_, err = h.service.Open(ctx, "u2")
	assert.NoError(t, err)
}

func TestStartRevalidatesDailyLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)

	a, err := h.service.Open(ctx, "u1")
	require.NoError(t, err)
	b, err := h.service.Open(ctx, "u1")
	require.NoError(t, err)

	_, err = h.service.Start(ctx, a.SessionID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.service.Release(context.Background(), a.SessionID) })

	state, err := h.service.Start(ctx, b.SessionID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPlayedToday)
	assert.Equal(t, domain.StatusReady, state.Status)
}

func TestStartOutsideWindowIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)

	opened, err := h.service.Open(ctx, "u1")
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	_, err = h.service.Start(ctx, opened.SessionID)
	assert.ErrorIs(t, err, domain.ErrTimeRestricted)
	plays, _ := h.store.CountPlays(ctx, "u1", "2024-05-01")
	assert.Zero(t, plays)
}

func TestNoQuestionsAvailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, func(c *app.GameConfig) {
		c.MinQuestions = 3
		c.MaxQuestions = 3
	})

	opened, err := h.service.Open(ctx, "u1")
	require.NoError(t, err)
	_, err = h.service.Start(ctx, opened.SessionID)
	assert.ErrorIs(t, err, domain.ErrNoQuestionsAvailable)

	plays, _ := h.store.CountPlays(ctx, "u1", "2024-05-01")
	assert.Zero(t, plays)
}

func TestPersistenceFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)
	id := h.startSession(t, "u1")

	h.store.setFail(true)
	res, err := h.service.SubmitAnswer(ctx, id, answer(0, 0))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 14, res.Breakdown.Total)

	state, _ := h.service.State(ctx, id)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Len(t, state.Answers, 1)
	assert.Empty(t, h.store.Answers(id))

	session, ok := h.sessions.Get(id)
	require.True(t, ok)
	assert.Positive(t, session.Pending())

	assert.ErrorIs(t, h.service.Release(ctx, id), domain.ErrPersistence)
	_, ok = h.sessions.Get(id)
	assert.True(t, ok)

	h.store.setFail(false)
	require.NoError(t, h.service.Flush(ctx, id))
	assert.Zero(t, session.Pending())
	assert.Len(t, h.store.Answers(id), 1)
}

func TestWatcherTimesSessionOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 4, func(c *app.GameConfig) {
		c.TickInterval = 5 * time.Millisecond
	})
	id := h.startSession(t, "u1")

	updates, cancel, err := h.service.Subscribe(ctx, id)
	require.NoError(t, err)
	defer cancel()

	h.clock.Advance(10 * time.Minute)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case state, ok := <-updates:
			require.True(t, ok)
			if state.Status == domain.StatusTimedOut {
				require.NotNil(t, state.Summary)
				assert.Zero(t, state.Summary.AnsweredQuestions)
				return
			}
		case <-deadline:
			t.Fatal("watcher did not time the session out")
		}
	}
}

func TestEmptyDayPlaysSampleData(t *testing.T) {
	ctx := context.Background()
	cfg := app.DefaultGameConfig()
	cfg.Location = time.UTC
	clock := &fakeClock{now: time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)}
	gen := questiongen.NewGenerator(questiongen.DefaultCatalogConfig(),
		questiongen.WithRand(rand.New(rand.NewSource(3))),
		questiongen.WithClock(clock.Now),
	)
	service := app.NewQuizService(cfg, memory.NewSessionStore(), memory.NewStore(),
		memory.NewActivityRepository(memory.NewStaticActivityLoader(time.UTC), time.Minute), gen,
		app.WithClock(clock.Now))

	opened, err := service.Open(ctx, "u1")
	require.NoError(t, err)
	state, err := service.Start(ctx, opened.SessionID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Release(context.Background(), opened.SessionID) })

	assert.True(t, state.SampleData)
	assert.GreaterOrEqual(t, len(state.Questions), 3)
	assert.LessOrEqual(t, len(state.Questions), 5)
	for _, q := range state.Questions {
		assert.NoError(t, questiongen.Validate(q))
	}
}

func TestWindowWrapsPastMidnight(t *testing.T) {
	w := app.Window{StartHour: 22, EndHour: 2}
	at := func(h int) time.Time { return time.Date(2024, 5, 1, h, 30, 0, 0, time.UTC) }

	assert.True(t, w.Contains(at(23)))
	assert.True(t, w.Contains(at(1)))
	assert.False(t, w.Contains(at(2)))
	assert.False(t, w.Contains(at(12)))
	assert.Equal(t, time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC), w.NextStart(at(12)))
}

func TestFirstCompletedSessionOfDayEarnsBonusAfterTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3, func(c *app.GameConfig) { c.DailyLimit = 3 })

	timedOut := h.startSession(t, "u1")
	h.clock.Advance(301 * time.Second)
	finished, err := h.service.Tick(ctx, timedOut)
	require.NoError(t, err)
	require.True(t, finished)
	require.NoError(t, h.service.Release(ctx, timedOut))

	playAll := func() *domain.SessionSummary {
		id := h.startSession(t, "u1")
		var last app.AnswerResult
		for i := 0; i < 3; i++ {
			last, err = h.service.SubmitAnswer(ctx, id, answer(i, 0))
			require.NoError(t, err)
		}
		require.Equal(t, domain.StatusCompleted, last.Status)
		require.NotNil(t, last.Summary)
		return last.Summary
	}

	first := playAll()
	assert.Equal(t, 10, first.FirstOfDayBonus)
	assert.Contains(t, first.Achievements, "daily_challenge")
	assert.Contains(t, first.Achievements, "first_session")

	second := playAll()
	assert.Zero(t, second.FirstOfDayBonus)

	stats, err := h.service.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SessionsCompleted)
}

func TestFailedReleaseKeepsTimeoutWatcher(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3, func(c *app.GameConfig) {
		c.TickInterval = 5 * time.Millisecond
	})
	id := h.startSession(t, "u1")

	h.store.setFail(true)
	_, err := h.service.SubmitAnswer(ctx, id, answer(0, 0))
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, h.service.Release(ctx, id), domain.ErrPersistence)

	h.clock.Advance(10 * time.Minute)
	assert.Eventually(t, func() bool {
		state, err := h.service.State(ctx, id)
		return err == nil && state.Status == domain.StatusTimedOut
	}, 2*time.Second, 5*time.Millisecond)

	h.store.setFail(false)
	require.NoError(t, h.service.Release(ctx, id))
	_, ok := h.sessions.Get(id)
	assert.False(t, ok)
	assert.Len(t, h.store.Answers(id), 1)
	assert.Zero(t, h.service.LiveSessions())
}
