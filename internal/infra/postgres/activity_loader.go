package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"daily-quiz-service/internal/domain"
)

const dayLayout = "2006-01-02"

const selectDayActivity = `
SELECT id, user_id, kind, amount::text, category, payment_method, description, occurred_at
FROM activity_records
WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
ORDER BY occurred_at, id`

// ActivityLoader reads a user's activity records for one local day.
type ActivityLoader struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewActivityLoader(pool *pgxpool.Pool, loc *time.Location) *ActivityLoader {
	if loc == nil {
		loc = time.Local
	}
	return &ActivityLoader{pool: pool, loc: loc}
}

func (l *ActivityLoader) LoadActivity(ctx context.Context, userID, day string) ([]domain.ActivityRecord, error) {
	from, to, err := dayBounds(day, l.loc)
	if err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, selectDayActivity, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ActivityRecord
	for rows.Next() {
		var (
			rec    domain.ActivityRecord
			kind   string
			amount string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &kind, &amount, &rec.Category, &rec.PaymentMethod, &rec.Description, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		rec.Kind = domain.ActivityKind(kind)
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("activity %s amount %q: %w", rec.ID, amount, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	return out, nil
}

// dayBounds returns the [start, end) instants of day in loc.
func dayBounds(day string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dayLayout, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}
