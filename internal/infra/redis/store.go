package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
)

// claimScript takes one play if the day's counter is below the limit.
// KEYS[1] plays counter, ARGV[1] limit, ARGV[2] counter ttl in seconds.
var claimScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

// Store implements app.Store on Redis.
// Keys:
//
//	quiz:plays:{user}:{day}         counter, expires after playTTL
//	quiz:session:{id}               session snapshot (JSON)
//	quiz:session:{id}:answers       list of answer events (JSON)
//	quiz:user:{user}:stats          hash: points, sessions, perfect
//	quiz:user:{user}:achievements   hash: type -> record (JSON), written with HSETNX
//	quiz:user:{user}:history        list of summaries, newest first, trimmed to app.HistoryLimit
type Store struct {
	client     *redis.Client
	sessionTTL time.Duration
	playTTL    time.Duration
}

func NewStore(client *redis.Client, sessionTTL time.Duration) *Store {
	return &Store{
		client:     client,
		sessionTTL: sessionTTL,
		playTTL:    48 * time.Hour,
	}
}

func (s *Store) CountPlays(ctx context.Context, userID, day string) (int, error) {
	n, err := s.client.Get(ctx, playsKey(userID, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *Store) ClaimPlay(ctx context.Context, userID, day string, limit int) (bool, error) {
	ok, err := claimScript.Run(ctx, s.client, []string{playsKey(userID, day)}, limit, int(s.playTTL.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}

func (s *Store) SaveSession(ctx context.Context, state domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, sessionKey(state.SessionID), data, s.sessionTTL).Err()
}

// Session reads back a saved snapshot.
func (s *Store) Session(ctx context.Context, sessionID string) (domain.SessionState, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionState{}, err
	}
	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.SessionState{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return state, nil
}

func (s *Store) RecordAnswer(ctx context.Context, sessionID string, answer domain.AnswerEvent) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	key := answersKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.sessionTTL > 0 {
		pipe.Expire(ctx, key, s.sessionTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Answers returns the recorded answers of a session in order.
func (s *Store) Answers(ctx context.Context, sessionID string) ([]domain.AnswerEvent, error) {
	raw, err := s.client.LRange(ctx, answersKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnswerEvent, 0, len(raw))
	for _, item := range raw {
		var a domain.AnswerEvent
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) AddUserPoints(ctx context.Context, userID string, points int) (int, error) {
	total, err := s.client.HIncrBy(ctx, statsKey(userID), "points", int64(points)).Result()
	return int(total), err
}

func (s *Store) UnlockAchievementIfAbsent(ctx context.Context, userID string, record domain.AchievementRecord) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("marshal achievement: %w", err)
	}
	return s.client.HSetNX(ctx, achievementsKey(userID), record.Type, data).Result()
}

func (s *Store) AppendHistory(ctx context.Context, userID string, summary domain.SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, historyKey(userID), data)
		pipe.LTrim(ctx, historyKey(userID), 0, app.HistoryLimit-1)
		if summary.Status == domain.StatusCompleted {
			pipe.HIncrBy(ctx, statsKey(userID), "sessions", 1)
		}
		if summary.Perfect() {
			pipe.HIncrBy(ctx, statsKey(userID), "perfect", 1)
		}
		return nil
	})
	return err
}

func (s *Store) History(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 || limit > app.HistoryLimit {
		limit = app.HistoryLimit
	}
	raw, err := s.client.LRange(ctx, historyKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionSummary, 0, len(raw))
	for _, item := range raw {
		var sum domain.SessionSummary
		if err := json.Unmarshal([]byte(item), &sum); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Store) Achievements(ctx context.Context, userID string) ([]domain.AchievementRecord, error) {
	raw, err := s.client.HGetAll(ctx, achievementsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AchievementRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.AchievementRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal achievement: %w", err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.Before(out[j].UnlockedAt)
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (s *Store) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	raw, err := s.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return domain.UserStats{}, err
	}
	return domain.UserStats{
		TotalPoints:       atoi(raw["points"]),
		SessionsCompleted: atoi(raw["sessions"]),
		PerfectSessions:   atoi(raw["perfect"]),
	}, nil
}

func atoi(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func playsKey(userID, day string) string {
	return "quiz:plays:" + userID + ":" + day
}

func sessionKey(sessionID string) string {
	return "quiz:session:" + sessionID
}

func answersKey(sessionID string) string {
	return "quiz:session:" + sessionID + ":answers"
}

func statsKey(userID string) string {
	return "quiz:user:" + userID + ":stats"
}

func achievementsKey(userID string) string {
	return "quiz:user:" + userID + ":achievements"
}

func historyKey(userID string) string {
	return "quiz:user:" + userID + ":history"
}
