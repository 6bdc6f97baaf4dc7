package questiongen

import (
	"strings"

	"github.com/shopspring/decimal"

	"daily-quiz-service/internal/domain"
)

// Facts are the aggregates every archetype reads. Category and method
// slices keep first-seen order so generation is reproducible under a seeded source.
type Facts struct {
	Records         int
	Expenses        int
	TotalExpense    decimal.Decimal
	TotalIncome     decimal.Decimal
	MaxExpense      decimal.Decimal
	MaxCategory     string
	Categories      []string
	CategoryTotals  map[string]decimal.Decimal
	Methods         []string
	MethodCounts    map[string]int
	ImpulseDetected bool
}

// Analyze folds a day's records into Facts. impulseThreshold is the single
// expense amount above which entertainment or shopping counts as impulsive.
func Analyze(records []domain.ActivityRecord, impulseThreshold decimal.Decimal) Facts {
	f := Facts{
		Records:        len(records),
		TotalExpense:   decimal.Zero,
		TotalIncome:    decimal.Zero,
		MaxExpense:     decimal.Zero,
		CategoryTotals: make(map[string]decimal.Decimal),
		MethodCounts:   make(map[string]int),
	}

	for _, r := range records {
		if !r.IsExpense() {
			f.TotalIncome = f.TotalIncome.Add(r.Amount)
			continue
		}

		category := normalize(r.Category, CategoryOther)
		f.Expenses++
		f.TotalExpense = f.TotalExpense.Add(r.Amount)
		if r.Amount.GreaterThan(f.MaxExpense) {
			f.MaxExpense = r.Amount
			f.MaxCategory = category
		}

		if _, ok := f.CategoryTotals[category]; !ok {
			f.Categories = append(f.Categories, category)
			f.CategoryTotals[category] = decimal.Zero
		}
		f.CategoryTotals[category] = f.CategoryTotals[category].Add(r.Amount)

		method := normalize(r.PaymentMethod, MethodCash)
		if _, ok := f.MethodCounts[method]; !ok {
			f.Methods = append(f.Methods, method)
		}
		f.MethodCounts[method]++

		if (category == CategoryEntertainment || category == CategoryShopping) && r.Amount.GreaterThan(impulseThreshold) {
			f.ImpulseDetected = true
		}
	}
	return f
}

// TopCategory returns the category with the highest spend; ties go to the first seen.
func (f Facts) TopCategory() (string, bool) {
	best := ""
	for _, c := range f.Categories {
		if best == "" || f.CategoryTotals[c].GreaterThan(f.CategoryTotals[best]) {
			best = c
		}
	}
	return best, best != ""
}

// TopMethod returns the payment method used most often; ties go to the first seen.
func (f Facts) TopMethod() (string, bool) {
	best := ""
	for _, m := range f.Methods {
		if best == "" || f.MethodCounts[m] > f.MethodCounts[best] {
			best = m
		}
	}
	return best, best != ""
}

// AverageExpense is zero when there are no expenses.
func (f Facts) AverageExpense() decimal.Decimal {
	if f.Expenses == 0 {
		return decimal.Zero
	}
	return f.TotalExpense.Div(decimal.NewFromInt(int64(f.Expenses)))
}

// CategoryShare is the rounded percentage of spend that went to category.
func (f Facts) CategoryShare(category string) int {
	if !f.TotalExpense.IsPositive() {
		return 0
	}
	share := f.CategoryTotals[category].Div(f.TotalExpense).Mul(decimal.NewFromInt(100))
	return int(share.Round(0).IntPart())
}

func normalize(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}
