package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
)

// ActivityLoader fetches a user's records for one day from a backing store.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error)
}

// ActivityRepository caches daily activity with TTL to avoid repeated DB hits.
type ActivityRepository struct {
	loader ActivityLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedActivity
}

type cachedActivity struct {
	records   []domain.ActivityRecord
	expiresAt time.Time
}

func NewActivityRepository(loader ActivityLoader, ttl time.Duration) *ActivityRepository {
	return &ActivityRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedActivity),
	}
}

func (r *ActivityRepository) TodayActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error) {
	key := userID + ":" + day
	if records, ok := r.cached(key); ok {
		return records, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if records, ok := r.cached(key); ok {
			return records, nil
		}

		records, err := r.loader.LoadActivity(ctx, userID, day)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedActivity{
			records:   records,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return copyRecords(result.([]domain.ActivityRecord)), nil
}

// Invalidate drops the cached day, e.g. after a new record was written.
func (r *ActivityRepository) Invalidate(userID, day string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, userID+":"+day)
}

func (r *ActivityRepository) cached(key string) ([]domain.ActivityRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return copyRecords(entry.records), true
}

func (r *ActivityRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticActivityLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticActivityLoader struct {
	mu      sync.RWMutex
	records []domain.ActivityRecord
	loc     *time.Location
}

func NewStaticActivityLoader(loc *time.Location, records ...domain.ActivityRecord) *StaticActivityLoader {
	if loc == nil {
		loc = time.Local
	}
	return &StaticActivityLoader{records: records, loc: loc}
}

// Add appends a record.
func (l *StaticActivityLoader) Add(record domain.ActivityRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
}

func (l *StaticActivityLoader) LoadActivity(_ context.Context, userID, day string) ([]domain.ActivityRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.ActivityRecord
	for _, rec := range l.records {
		if rec.UserID == userID && rec.OccurredAt.In(l.loc).Format(app.DayLayout) == day {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func copyRecords(in []domain.ActivityRecord) []domain.ActivityRecord {
	if in == nil {
		return nil
	}
	return append([]domain.ActivityRecord(nil), in...)
}
