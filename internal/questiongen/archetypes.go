package questiongen

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"daily-quiz-service/internal/domain"
)

// Known expense categories, used to pad category options.
const (
	CategoryFood          = "food"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryShopping      = "shopping"
	CategoryUtilities     = "utilities"
	CategoryHealthcare    = "healthcare"
	CategoryEducation     = "education"
	CategoryOther         = "other"
)

// Known payment methods, used to pad payment-method options.
const (
	MethodCash         = "cash"
	MethodCreditCard   = "credit card"
	MethodTransitCard  = "transit card"
	MethodMobilePay    = "mobile pay"
	MethodBankTransfer = "bank transfer"
)

var knownCategories = []string{
	CategoryFood, CategoryTransport, CategoryEntertainment, CategoryShopping,
	CategoryUtilities, CategoryHealthcare, CategoryEducation, CategoryOther,
}

var knownMethods = []string{MethodCash, MethodCreditCard, MethodTransitCard, MethodMobilePay, MethodBankTransfer}

// Archetype keys.
const (
	ArchetypeMaxExpense         = "max_expense"
	ArchetypeTotalSpent         = "total_spent"
	ArchetypeTopCategory        = "top_category"
	ArchetypeImpulse            = "impulse_purchase"
	ArchetypeIncomeVsExpense    = "income_vs_expense"
	ArchetypeTransactionCount   = "transaction_count"
	ArchetypeAverageExpense     = "average_expense"
	ArchetypeCategoryPercentage = "category_percentage"
	ArchetypePaymentMethod      = "payment_method"
	ArchetypeBudgetStatus       = "budget_status"
)

const (
	labelYes = "Yes"
	labelNo  = "No"

	labelIncomeAhead  = "Income exceeded spending"
	labelSpendAhead   = "Spending exceeded income"
	labelBalanced     = "Income and spending balanced"
	labelNoActivity   = "Nothing was recorded"
	labelSevereOver   = "Well over budget (more than 150%)"
	labelMildOver     = "Slightly over budget (110% to 150%)"
	labelWithinBudget = "Within budget"
	labelBigSaving    = "Well under budget (below 80%)"
)

// Answer is what an archetype derives from the facts: the correct option,
// the wrong ones, and a short explanation.
type Answer struct {
	Correct     string
	Distractors []string
	Explanation string
}

// Archetype is a question template paired with a pure function that computes
// its correct answer. Build reports false when the facts cannot support it.
type Archetype struct {
	Key        string
	Prompt     string
	Difficulty domain.Difficulty
	PointsBase int
	Build      func(f Facts, rnd *rand.Rand) (Answer, bool)
}

// CatalogConfig tunes the data-driven archetypes.
type CatalogConfig struct {
	ImpulseThreshold decimal.Decimal
	DailyBudget      decimal.Decimal
	ShareCategory    string
}

// DefaultCatalogConfig mirrors the game defaults.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		ImpulseThreshold: decimal.NewFromInt(200),
		DailyBudget:      decimal.NewFromInt(1000),
		ShareCategory:    CategoryFood,
	}
}

// DefaultCatalog returns every archetype the generator knows.
func DefaultCatalog(cfg CatalogConfig) []Archetype {
	share := cfg.ShareCategory
	if share == "" {
		share = CategoryFood
	}
	budget := cfg.DailyBudget
	if !budget.IsPositive() {
		budget = decimal.NewFromInt(1000)
	}

	return []Archetype{
		{
			Key:        ArchetypeMaxExpense,
			Prompt:     "What was your largest single expense today?",
			Difficulty: domain.DifficultyEasy,
			PointsBase: 10,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				if f.Expenses == 0 || !f.MaxExpense.IsPositive() {
					return Answer{}, false
				}
				v := f.MaxExpense.Round(0).IntPart()
				return Answer{
					Correct:     strconv.FormatInt(v, 10),
					Distractors: formatInts(amountDistractors(rnd, v), ""),
					Explanation: fmt.Sprintf("Your largest expense today was %d, spent on %s.", v, f.MaxCategory),
				}, true
			},
		},
		{
			Key:        ArchetypeTotalSpent,
			Prompt:     "How much did you spend in total today?",
			Difficulty: domain.DifficultyEasy,
			PointsBase: 10,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				if !f.TotalExpense.IsPositive() {
					return Answer{}, false
				}
				v := f.TotalExpense.Round(0).IntPart()
				return Answer{
					Correct:     strconv.FormatInt(v, 10),
					Distractors: formatInts(amountDistractors(rnd, v), ""),
					Explanation: fmt.Sprintf("You spent %d in total today.", v),
				}, true
			},
		},
		{
			Key:        ArchetypeTopCategory,
			Prompt:     "Which category did you spend the most on today?",
			Difficulty: domain.DifficultyMedium,
			PointsBase: 15,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				top, ok := f.TopCategory()
				if !ok || len(f.Categories) < 2 {
					return Answer{}, false
				}
				return Answer{
					Correct:     top,
					Distractors: labelDistractors(rnd, top, f.Categories, knownCategories, distractorCount),
					Explanation: fmt.Sprintf("You spent the most on %s today: %s.", top, f.CategoryTotals[top].Round(0).String()),
				}, true
			},
		},
		{
			Key:        ArchetypeImpulse,
			Prompt:     "Did you make an impulse purchase today?",
			Difficulty: domain.DifficultyMedium,
			PointsBase: 15,
			Build: func(f Facts, _ *rand.Rand) (Answer, bool) {
				if f.Expenses == 0 {
					return Answer{}, false
				}
				if f.ImpulseDetected {
					return Answer{
						Correct:     labelYes,
						Distractors: []string{labelNo},
						Explanation: fmt.Sprintf("An entertainment or shopping expense above %s looks like an impulse purchase.", cfg.ImpulseThreshold.String()),
					}, true
				}
				return Answer{
					Correct:     labelNo,
					Distractors: []string{labelYes},
					Explanation: "No entertainment or shopping expense stood out today.",
				}, true
			},
		},
		{
			Key:        ArchetypeIncomeVsExpense,
			Prompt:     "How did your income compare with your spending today?",
			Difficulty: domain.DifficultyMedium,
			PointsBase: 15,
			Build: func(f Facts, _ *rand.Rand) (Answer, bool) {
				if f.TotalIncome.IsZero() && f.TotalExpense.IsZero() {
					return Answer{}, false
				}
				correct := labelBalanced
				switch f.TotalIncome.Cmp(f.TotalExpense) {
				case 1:
					correct = labelIncomeAhead
				case -1:
					correct = labelSpendAhead
				}
				return Answer{
					Correct:     correct,
					Distractors: without(correct, labelIncomeAhead, labelSpendAhead, labelBalanced, labelNoActivity),
					Explanation: fmt.Sprintf("Income today was %s and spending was %s.", f.TotalIncome.Round(0).String(), f.TotalExpense.Round(0).String()),
				}, true
			},
		},
		{
			Key:        ArchetypeTransactionCount,
			Prompt:     "How many entries did you record today?",
			Difficulty: domain.DifficultyEasy,
			PointsBase: 10,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				if f.Records == 0 {
					return Answer{}, false
				}
				v := int64(f.Records)
				return Answer{
					Correct:     strconv.FormatInt(v, 10),
					Distractors: formatInts(countDistractors(rnd, v), ""),
					Explanation: fmt.Sprintf("You recorded %d entries today.", v),
				}, true
			},
		},
		{
			Key:        ArchetypeAverageExpense,
			Prompt:     "What was your average expense today?",
			Difficulty: domain.DifficultyHard,
			PointsBase: 20,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				if f.Expenses == 0 {
					return Answer{}, false
				}
				v := f.AverageExpense().Round(0).IntPart()
				return Answer{
					Correct:     strconv.FormatInt(v, 10),
					Distractors: formatInts(amountDistractors(rnd, v), ""),
					Explanation: fmt.Sprintf("Your %d expenses averaged %d each.", f.Expenses, v),
				}, true
			},
		},
		{
			Key:        ArchetypeCategoryPercentage,
			Prompt:     fmt.Sprintf("What share of today's spending went to %s?", share),
			Difficulty: domain.DifficultyHard,
			PointsBase: 20,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				if !f.TotalExpense.IsPositive() {
					return Answer{}, false
				}
				v := int64(f.CategoryShare(share))
				return Answer{
					Correct:     strconv.FormatInt(v, 10) + "%",
					Distractors: formatInts(percentDistractors(rnd, v), "%"),
					Explanation: fmt.Sprintf("%s made up %d%% of today's spending.", capitalize(share), v),
				}, true
			},
		},
		{
			Key:        ArchetypePaymentMethod,
			Prompt:     "Which payment method did you use most today?",
			Difficulty: domain.DifficultyEasy,
			PointsBase: 10,
			Build: func(f Facts, rnd *rand.Rand) (Answer, bool) {
				top, ok := f.TopMethod()
				if !ok {
					return Answer{}, false
				}
				return Answer{
					Correct:     top,
					Distractors: labelDistractors(rnd, top, f.Methods, knownMethods, distractorCount),
					Explanation: fmt.Sprintf("You paid by %s %d times today.", top, f.MethodCounts[top]),
				}, true
			},
		},
		{
			Key:        ArchetypeBudgetStatus,
			Prompt:     fmt.Sprintf("How did today's spending compare with your daily budget of %s?", budget.String()),
			Difficulty: domain.DifficultyMedium,
			PointsBase: 15,
			Build: func(f Facts, _ *rand.Rand) (Answer, bool) {
				if f.Expenses == 0 {
					return Answer{}, false
				}
				ratio := f.TotalExpense.Div(budget)
				var correct string
				switch {
				case ratio.GreaterThan(decimal.NewFromFloat(1.5)):
					correct = labelSevereOver
				case ratio.GreaterThan(decimal.NewFromFloat(1.1)):
					correct = labelMildOver
				case ratio.LessThan(decimal.NewFromFloat(0.8)):
					correct = labelBigSaving
				default:
					correct = labelWithinBudget
				}
				pct := ratio.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
				return Answer{
					Correct:     correct,
					Distractors: without(correct, labelSevereOver, labelMildOver, labelWithinBudget, labelBigSaving),
					Explanation: fmt.Sprintf("You spent %s, which is %d%% of your budget.", f.TotalExpense.Round(0).String(), pct),
				}, true
			},
		},
	}
}

func without(drop string, labels ...string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != drop {
			out = append(out, l)
		}
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
