package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/infra/memory"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestStoreClaimPlayIsAtomic(t *testing.T) {
	mr, client := newClient(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ClaimPlay(ctx, "u1", "2024-05-01", 2)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if claimed != 2 {
		t.Fatalf("expected 2 claims, got %d", claimed)
	}
	plays, err := store.CountPlays(ctx, "u1", "2024-05-01")
	if err != nil || plays != 2 {
		t.Fatalf("expected 2 plays, got %d (%v)", plays, err)
	}
	if ttl := mr.TTL("quiz:plays:u1:2024-05-01"); ttl <= 0 {
		t.Fatalf("expected plays counter to expire, ttl=%v", ttl)
	}
	if plays, _ := store.CountPlays(ctx, "u1", "2024-05-02"); plays != 0 {
		t.Fatalf("expected no plays on another day, got %d", plays)
	}
}

func TestStoreSessionAndAnswers(t *testing.T) {
	_, client := newClient(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)
	state := domain.SessionState{
		SessionID: "s1",
		UserID:    "u1",
		Day:       "2024-05-01",
		Status:    domain.StatusInProgress,
		Questions: []domain.Question{{ID: "q1", Prompt: "p", Options: []string{"1", "2"}, Difficulty: domain.DifficultyEasy}},
		StartedAt: &started,
	}
	if err := store.SaveSession(ctx, state); err != nil {
		t.Fatalf("save session: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.RecordAnswer(ctx, "s1", domain.AnswerEvent{QuestionID: fmt.Sprintf("q%d", i), ScoreAwarded: 10 + i}); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	got, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if got.Status != domain.StatusInProgress || len(got.Questions) != 1 || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected session %+v", got)
	}
	answers, err := store.Answers(ctx, "s1")
	if err != nil {
		t.Fatalf("read answers: %v", err)
	}
	if len(answers) != 2 || answers[0].QuestionID != "q0" || answers[1].ScoreAwarded != 11 {
		t.Fatalf("unexpected answers %+v", answers)
	}

	if _, err := store.Session(ctx, "missing"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreAchievementsAndStats(t *testing.T) {
	_, client := newClient(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)
	rec := domain.AchievementRecord{Type: "perfect_game", PointsReward: 50, UnlockedAt: at}
	created, err := store.UnlockAchievementIfAbsent(ctx, "u1", rec)
	if err != nil || !created {
		t.Fatalf("expected unlock, got %v %v", created, err)
	}
	created, _ = store.UnlockAchievementIfAbsent(ctx, "u1", rec)
	if created {
		t.Fatalf("expected second unlock to be a no-op")
	}
	_, _ = store.UnlockAchievementIfAbsent(ctx, "u1", domain.AchievementRecord{Type: "combo_master", UnlockedAt: at.Add(time.Second)})

	records, err := store.Achievements(ctx, "u1")
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if len(records) != 2 || records[0].Type != "perfect_game" || records[1].Type != "combo_master" {
		t.Fatalf("unexpected achievements %+v", records)
	}

	if _, err := store.AddUserPoints(ctx, "u1", 79); err != nil {
		t.Fatalf("add points: %v", err)
	}
	total, _ := store.AddUserPoints(ctx, "u1", 50)
	if total != 129 {
		t.Fatalf("expected 129 points, got %d", total)
	}
}

func TestStoreHistoryIsCapped(t *testing.T) {
	_, client := newClient(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 32; i++ {
		sum := domain.SessionSummary{SessionID: fmt.Sprintf("s%d", i), Day: "2024-05-01", Status: domain.StatusCompleted, TotalQuestions: 3}
		if i%4 == 0 {
			sum.Status = domain.StatusTimedOut
		}
		if i == 31 {
			sum.CorrectCount = 3
		}
		if err := store.AppendHistory(ctx, "u1", sum); err != nil {
			t.Fatalf("append history: %v", err)
		}
	}

	history, err := store.History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 30 || history[0].SessionID != "s31" || history[29].SessionID != "s2" {
		t.Fatalf("unexpected history: len=%d first=%s", len(history), history[0].SessionID)
	}
	latest, _ := store.History(ctx, "u1", 1)
	if len(latest) != 1 || latest[0].SessionID != "s31" {
		t.Fatalf("unexpected latest %+v", latest)
	}

	stats, err := store.UserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SessionsCompleted != 24 || stats.PerfectSessions != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestActivityRepositoryCachesInRedis(t *testing.T) {
	mr, client := newClient(t)

	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loader := &countingLoader{ActivityLoader: memory.NewStaticActivityLoader(time.UTC,
		domain.ActivityRecord{ID: "r1", UserID: "u1", Amount: decimal.RequireFromString("120.50"), Category: "food", OccurredAt: day},
	)}
	repo := NewActivityRepository(client, loader, time.Minute)
	ctx := context.Background()

	records, err := repo.TodayActivity(ctx, "u1", "2024-05-01")
	if err != nil {
		t.Fatalf("today activity: %v", err)
	}
	if loader.calls != 1 || len(records) != 1 {
		t.Fatalf("expected loader called once with 1 record, got %d calls %d records", loader.calls, len(records))
	}
	if !mr.Exists("quiz:activity:u1:2024-05-01") {
		t.Fatalf("expected cached activity key")
	}

	// Second call should hit cache, loader not incremented.
	records, _ = repo.TodayActivity(ctx, "u1", "2024-05-01")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if !records[0].Amount.Equal(decimal.RequireFromString("120.5")) {
		t.Fatalf("expected amount to survive the cache, got %s", records[0].Amount)
	}

	if err := repo.Invalidate(ctx, "u1", "2024-05-01"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.TodayActivity(ctx, "u1", "2024-05-01")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.ActivityLoader
	calls int
}

func (l *countingLoader) LoadActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error) {
	l.calls++
	return l.ActivityLoader.LoadActivity(ctx, userID, day)
}
