package scoring

import (
	"math"

	"daily-quiz-service/internal/domain"
)

// Config holds the scoring constants. DefaultConfig is the canonical rule set.
type Config struct {
	BaseScore       int
	PerfectBonus    int
	FirstOfDayBonus int
	TimeBonusMax    int
	FastThresholdMs int64
	SlowThresholdMs int64
	SlowPenalty     float64
	// DifficultyMultipliers maps a difficulty to its multiplier; unknown difficulties use 1.0.
	DifficultyMultipliers map[domain.Difficulty]float64
	// ComboMultipliers is indexed by combo length; the last entry applies to every longer streak.
	ComboMultipliers []float64
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		BaseScore:       10,
		PerfectBonus:    20,
		FirstOfDayBonus: 10,
		TimeBonusMax:    5,
		FastThresholdMs: 10_000,
		SlowThresholdMs: 25_000,
		SlowPenalty:     0.8,
		DifficultyMultipliers: map[domain.Difficulty]float64{
			domain.DifficultyEasy:   1.0,
			domain.DifficultyMedium: 1.2,
			domain.DifficultyHard:   1.5,
		},
		ComboMultipliers: []float64{1.0, 1.0, 1.2, 1.5, 2.0},
	}
}

// Input describes one answer to score.
type Input struct {
	IsCorrect   bool
	TimeTakenMs int64
	Difficulty  domain.Difficulty
	PointsBase  int
	ComboBefore int
}

// Calculator computes per-answer and per-session scores. It holds no mutable state.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config exposes the constants the calculator was built with.
func (c *Calculator) Config() Config {
	return c.cfg
}

// NextCombo returns the streak length after an answer.
func NextCombo(before int, correct bool) int {
	if !correct {
		return 0
	}
	if before < 0 {
		before = 0
	}
	return before + 1
}

// ComboMultiplier looks up the multiplier for a streak length, capped at the last table entry.
func (c *Calculator) ComboMultiplier(combo int) float64 {
	table := c.cfg.ComboMultipliers
	if len(table) == 0 {
		return 1.0
	}
	if combo < 0 {
		combo = 0
	}
	if combo >= len(table) {
		combo = len(table) - 1
	}
	return table[combo]
}

// Score returns the breakdown for a single answer. The combo is advanced
// before scoring, so a correct answer is scored with its own streak length.
func (c *Calculator) Score(in Input) domain.ScoreBreakdown {
	if !in.IsCorrect {
		return domain.ScoreBreakdown{}
	}

	base := in.PointsBase
	if base <= 0 {
		base = c.cfg.BaseScore
	}

	difficultyMultiplier, ok := c.cfg.DifficultyMultipliers[in.Difficulty]
	if !ok {
		difficultyMultiplier = 1.0
	}
	difficultyBonus := roundInt(float64(base) * (difficultyMultiplier - 1.0))

	comboMultiplier := c.ComboMultiplier(NextCombo(in.ComboBefore, true))
	comboBonus := roundInt(float64(base) * (comboMultiplier - 1.0))

	timeTaken := in.TimeTakenMs
	if timeTaken < 0 {
		timeTaken = 0
	}
	timeBonus := 0
	if timeTaken <= c.cfg.FastThresholdMs && c.cfg.FastThresholdMs > 0 {
		ratio := float64(c.cfg.FastThresholdMs-timeTaken) / float64(c.cfg.FastThresholdMs)
		timeBonus = roundInt(float64(c.cfg.TimeBonusMax) * ratio)
		if timeBonus < 0 {
			timeBonus = 0
		}
	}

	penalty := 1.0
	if c.cfg.SlowThresholdMs > 0 && timeTaken >= c.cfg.SlowThresholdMs {
		penalty = c.cfg.SlowPenalty
	}

	total := roundInt(float64(base+difficultyBonus+timeBonus+comboBonus) * penalty)

	return domain.ScoreBreakdown{
		Base:              base,
		DifficultyBonus:   difficultyBonus,
		TimeBonus:         timeBonus,
		ComboBonus:        comboBonus,
		ComboMultiplier:   comboMultiplier,
		TimePenaltyFactor: penalty,
		Total:             total,
	}
}

// SessionInput is everything the aggregate needs from a finished session.
type SessionInput struct {
	Status     domain.SessionStatus
	Questions  []domain.Question
	Answers    []domain.AnswerEvent
	MaxCombo   int
	FirstOfDay bool
}

// Summarize fills the scoring fields of a session summary. The perfect bonus
// needs every question answered correctly; the first-of-day bonus only applies
// to sessions that completed.
func (c *Calculator) Summarize(in SessionInput) domain.SessionSummary {
	sum := domain.SessionSummary{
		Status:            in.Status,
		TotalQuestions:    len(in.Questions),
		AnsweredQuestions: len(in.Answers),
		MaxCombo:          in.MaxCombo,
	}

	var totalTime int64
	for _, a := range in.Answers {
		sum.AnswerPoints += a.ScoreAwarded
		totalTime += a.TimeTakenMs
		if a.IsCorrect {
			sum.CorrectCount++
		}
	}

	if sum.Perfect() {
		sum.PerfectBonus = c.cfg.PerfectBonus
	}
	if in.FirstOfDay && in.Status == domain.StatusCompleted {
		sum.FirstOfDayBonus = c.cfg.FirstOfDayBonus
	}
	sum.TotalScore = sum.AnswerPoints + sum.PerfectBonus + sum.FirstOfDayBonus

	if len(in.Answers) > 0 {
		sum.Accuracy = roundInt(float64(sum.CorrectCount) / float64(len(in.Answers)) * 100)
		sum.AverageTimeMs = int64(math.Round(float64(totalTime) / float64(len(in.Answers))))
	}

	sum.MaxPossibleScore = c.MaxPossible(in.Questions)
	sum.Grade = Grade(sum.TotalScore, sum.MaxPossibleScore)
	return sum
}

// MaxPossible is the score of a flawless session answered just under the fast threshold.
func (c *Calculator) MaxPossible(questions []domain.Question) int {
	if len(questions) == 0 {
		return 0
	}
	fast := c.cfg.FastThresholdMs - 1000
	if fast < 0 {
		fast = 0
	}
	total := 0
	for i, q := range questions {
		total += c.Score(Input{
			IsCorrect:   true,
			TimeTakenMs: fast,
			Difficulty:  q.Difficulty,
			PointsBase:  q.PointsBase,
			ComboBefore: i,
		}).Total
	}
	return total + c.cfg.PerfectBonus
}

// Grade buckets a score relative to the best achievable one.
func Grade(total, maxPossible int) string {
	if maxPossible <= 0 {
		return "F"
	}
	pct := float64(total) / float64(maxPossible) * 100
	switch {
	case pct >= 95:
		return "S"
	case pct >= 85:
		return "A"
	case pct >= 75:
		return "B"
	case pct >= 60:
		return "C"
	default:
		return "D"
	}
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
