package questiongen

import (
	"time"

	"github.com/shopspring/decimal"

	"daily-quiz-service/internal/domain"
)

// SampleActivity is the illustrative day used when a user has recorded nothing.
// Sessions built from it are flagged as sample data.
func SampleActivity(userID string, day time.Time) []domain.ActivityRecord {
	at := func(hour int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
	}
	return []domain.ActivityRecord{
		{ID: "sample-1", UserID: userID, Kind: domain.KindExpense, Amount: decimal.NewFromInt(120), Category: CategoryFood, PaymentMethod: MethodCash, Description: "lunch", OccurredAt: at(12)},
		{ID: "sample-2", UserID: userID, Kind: domain.KindExpense, Amount: decimal.NewFromInt(80), Category: CategoryTransport, PaymentMethod: MethodTransitCard, Description: "metro", OccurredAt: at(14)},
		{ID: "sample-3", UserID: userID, Kind: domain.KindExpense, Amount: decimal.NewFromInt(350), Category: CategoryEntertainment, PaymentMethod: MethodCreditCard, Description: "cinema tickets", OccurredAt: at(16)},
		{ID: "sample-4", UserID: userID, Kind: domain.KindExpense, Amount: decimal.NewFromInt(200), Category: CategoryFood, PaymentMethod: MethodMobilePay, Description: "dinner", OccurredAt: at(19)},
		{ID: "sample-5", UserID: userID, Kind: domain.KindExpense, Amount: decimal.NewFromInt(45), Category: CategoryOther, PaymentMethod: MethodCash, Description: "parking", OccurredAt: at(20)},
	}
}
