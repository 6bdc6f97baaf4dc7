package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"daily-quiz-service/internal/app"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute, "node-a")

	cfg := app.DefaultGameConfig()
	cfg.Location = time.UTC
	now := time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)
	service := app.NewQuizService(cfg, store, NewStore(client, time.Hour), nil, nil, app.WithClock(func() time.Time { return now }))

	state, err := service.Open(context.Background(), "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	key := "quiz:live:" + state.SessionID
	if owner, err := mr.Get(key); err != nil || owner != "node-a" {
		t.Fatalf("expected liveness key owned by node-a, got %q (%v)", owner, err)
	}
	if mr.TTL(key) <= 0 {
		t.Fatalf("expected liveness key to expire")
	}
	if _, ok := store.Get(state.SessionID); !ok || store.Len() != 1 {
		t.Fatalf("expected local session")
	}

	if err := service.Release(context.Background(), state.SessionID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get(state.SessionID); ok || store.Len() != 0 {
		t.Fatalf("expected local session removed")
	}
}
