package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"daily-quiz-service/internal/domain"
)

// ActivityLoader fetches a user's records for one day from a backing store (e.g., Postgres).
type ActivityLoader interface {
	LoadActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error)
}

// ActivityRepository caches a day's activity in Redis as JSON and falls back
// to the loader on a miss:
//
//	SET quiz:activity:{user}:{day} [records...] EX ttl
type ActivityRepository struct {
	client *redis.Client
	loader ActivityLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewActivityRepository(client *redis.Client, loader ActivityLoader, ttl time.Duration) *ActivityRepository {
	return &ActivityRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ActivityRepository) TodayActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error) {
	key := activityKey(userID, day)
	if records, ok := r.cached(ctx, key); ok {
		return records, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if records, ok := r.cached(ctx, key); ok {
			return records, nil
		}

		records, err := r.loader.LoadActivity(ctx, userID, day)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []domain.ActivityRecord{}
		}

		if data, err := json.Marshal(records); err == nil {
			// best-effort; the loader result is still served
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.ActivityRecord(nil), result.([]domain.ActivityRecord)...), nil
}

// Invalidate drops the cached day, e.g. after a new record was written.
func (r *ActivityRepository) Invalidate(ctx context.Context, userID, day string) error {
	return r.client.Del(ctx, activityKey(userID, day)).Err()
}

func (r *ActivityRepository) cached(ctx context.Context, key string) ([]domain.ActivityRecord, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil or an unreachable cache both fall through to the loader
		return nil, false
	}
	var records []domain.ActivityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return records, true
}

func (r *ActivityRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func activityKey(userID, day string) string {
	return "quiz:activity:" + userID + ":" + day
}
