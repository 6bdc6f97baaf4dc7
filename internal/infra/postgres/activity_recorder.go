package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"daily-quiz-service/internal/domain"
)

type activityRecordModel struct {
	bun.BaseModel `bun:"table:activity_records"`

	ID            string          `bun:"id,pk"`
	UserID        string          `bun:"user_id,notnull"`
	Kind          string          `bun:"kind,notnull"`
	Amount        decimal.Decimal `bun:"amount,type:numeric(14,2),notnull"`
	Category      string          `bun:"category,notnull"`
	PaymentMethod string          `bun:"payment_method,notnull"`
	Description   string          `bun:"description,notnull"`
	OccurredAt    time.Time       `bun:"occurred_at,notnull"`
}

// ActivityRecorder writes activity records through bun. It is the write side
// used by the record command and the integration tests.
type ActivityRecorder struct {
	db    bun.IDB
	newID func() string
	now   func() time.Time
}

func NewActivityRecorder(db bun.IDB) *ActivityRecorder {
	return &ActivityRecorder{db: db, newID: uuid.NewString, now: time.Now}
}

// Record validates and inserts rec, filling in a missing ID, kind or timestamp.
func (r *ActivityRecorder) Record(ctx context.Context, rec domain.ActivityRecord) (domain.ActivityRecord, error) {
	if strings.TrimSpace(rec.UserID) == "" {
		return rec, fmt.Errorf("activity record: user id is required")
	}
	if !rec.Amount.IsPositive() {
		return rec, fmt.Errorf("activity record: amount must be positive, got %s", rec.Amount)
	}
	switch rec.Kind {
	case "":
		rec.Kind = domain.KindExpense
	case domain.KindExpense, domain.KindIncome:
	default:
		return rec, fmt.Errorf("activity record: unknown kind %q", rec.Kind)
	}
	if rec.ID == "" {
		rec.ID = r.newID()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = r.now()
	}

	model := &activityRecordModel{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Kind:          string(rec.Kind),
		Amount:        rec.Amount,
		Category:      rec.Category,
		PaymentMethod: rec.PaymentMethod,
		Description:   rec.Description,
		OccurredAt:    rec.OccurredAt,
	}
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return rec, fmt.Errorf("insert activity %s: %w", rec.ID, err)
	}
	return rec, nil
}
