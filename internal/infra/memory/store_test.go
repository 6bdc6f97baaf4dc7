package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"daily-quiz-service/internal/domain"
)

func TestStoreClaimPlayRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ClaimPlay(ctx, "u1", "2024-05-01", 1)
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

	if claimed != 1 {
		t.Fatalf("expected exactly one claim, got %d", claimed)
	}
	plays, _ := store.CountPlays(ctx, "u1", "2024-05-01")
	if plays != 1 {
		t.Fatalf("expected 1 play, got %d", plays)
	}
	if plays, _ := store.CountPlays(ctx, "u1", "2024-05-02"); plays != 0 {
		t.Fatalf("expected a fresh day, got %d", plays)
	}
}

func TestStoreUnlockIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	rec := domain.AchievementRecord{Type: "perfect_game", PointsReward: 50}

	first, err := store.UnlockAchievementIfAbsent(ctx, "u1", rec)
	if err != nil || !first {
		t.Fatalf("expected first unlock, got %v %v", first, err)
	}
	second, _ := store.UnlockAchievementIfAbsent(ctx, "u1", rec)
	if second {
		t.Fatalf("expected second unlock to be a no-op")
	}
	records, _ := store.Achievements(ctx, "u1")
	if len(records) != 1 {
		t.Fatalf("expected 1 achievement, got %d", len(records))
	}
}

func TestStoreHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i := 0; i < 35; i++ {
		sum := domain.SessionSummary{SessionID: fmt.Sprintf("s%d", i), Status: domain.StatusCompleted, TotalQuestions: 3, CorrectCount: i % 2 * 3}
		if i%5 == 0 {
			sum.Status = domain.StatusTimedOut
		}
		if err := store.AppendHistory(ctx, "u1", sum); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, _ := store.History(ctx, "u1", 0)
	if len(history) != 30 {
		t.Fatalf("expected 30 entries, got %d", len(history))
	}
	if history[0].SessionID != "s34" {
		t.Fatalf("expected newest first, got %s", history[0].SessionID)
	}
	latest, _ := store.History(ctx, "u1", 1)
	if len(latest) != 1 || latest[0].SessionID != "s34" {
		t.Fatalf("expected latest entry only, got %+v", latest)
	}

	stats, _ := store.UserStats(ctx, "u1")
	if stats.SessionsCompleted != 28 || stats.PerfectSessions != 17 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	total, _ := store.AddUserPoints(ctx, "u1", 40)
	total, _ = store.AddUserPoints(ctx, "u1", 2)
	if total != 42 {
		t.Fatalf("expected 42 points, got %d", total)
	}
}
