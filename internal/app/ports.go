package app

import (
	"context"

	"daily-quiz-service/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	Len() int
}

// Store is the persistence collaborator. Implementations must be safe for concurrent use.
type Store interface {
	// CountPlays returns how many sessions the user started on day (YYYY-MM-DD).
	CountPlays(ctx context.Context, userID, day string) (int, error)
	// ClaimPlay atomically takes one of the day's plays, reporting false once limit is reached.
	ClaimPlay(ctx context.Context, userID, day string, limit int) (bool, error)
	SaveSession(ctx context.Context, state domain.SessionState) error
	RecordAnswer(ctx context.Context, sessionID string, answer domain.AnswerEvent) error
	// AddUserPoints returns the user's new total.
	AddUserPoints(ctx context.Context, userID string, points int) (int, error)
	// UnlockAchievementIfAbsent reports true only for the call that created the record.
	UnlockAchievementIfAbsent(ctx context.Context, userID string, record domain.AchievementRecord) (bool, error)
	// AppendHistory keeps the newest HistoryLimit summaries and bumps the lifetime counters.
	AppendHistory(ctx context.Context, userID string, summary domain.SessionSummary) error
	History(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error)
	Achievements(ctx context.Context, userID string) ([]domain.AchievementRecord, error)
	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
}

// HistoryLimit caps the per-user session history.
const HistoryLimit = 30

// ActivitySource loads the records questions are generated from.
type ActivitySource interface {
	TodayActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error)
}

// QuestionGenerator builds the questions for one session.
type QuestionGenerator interface {
	Generate(records []domain.ActivityRecord, count int) ([]domain.Question, error)
}
