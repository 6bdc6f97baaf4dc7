package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Difficulty grades a question and drives the difficulty bonus.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// SessionStatus is the state of a daily quiz session.
type SessionStatus string

const (
	StatusNotAvailable SessionStatus = "not_available"
	StatusReady        SessionStatus = "ready"
	StatusInProgress   SessionStatus = "in_progress"
	StatusCompleted    SessionStatus = "completed"
	StatusTimedOut     SessionStatus = "timed_out"
)

// Finished reports whether the session reached a terminal state.
func (s SessionStatus) Finished() bool {
	return s == StatusCompleted || s == StatusTimedOut
}

// ActivityKind separates spending from income records.
type ActivityKind string

const (
	KindExpense ActivityKind = "expense"
	KindIncome  ActivityKind = "income"
)

// ActivityRecord is one user-logged entry used as the factual basis for questions.
type ActivityRecord struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Kind          ActivityKind    `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Description   string          `json:"description,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// IsExpense treats records without a kind as expenses.
func (r ActivityRecord) IsExpense() bool {
	return r.Kind == "" || r.Kind == KindExpense
}

// Question models a generated multiple-choice question with exactly one correct option.
type Question struct {
	ID                 string     `json:"id"`
	Archetype          string     `json:"archetype"`
	Prompt             string     `json:"prompt"`
	Options            []string   `json:"options"`
	CorrectOptionIndex int        `json:"correctOptionIndex"`
	Difficulty         Difficulty `json:"difficulty"`
	PointsBase         int        `json:"pointsBase"`
	Explanation        string     `json:"explanation"`
}

// IsValidOption reports whether idx addresses one of the options.
func (q Question) IsValidOption(idx int) bool {
	return idx >= 0 && idx < len(q.Options)
}

// IsCorrect reports whether idx is the correct option.
func (q Question) IsCorrect(idx int) bool {
	return idx == q.CorrectOptionIndex
}

// AnswerSubmission is what a player sends for the current question.
type AnswerSubmission struct {
	QuestionIndex       int   `json:"questionIndex"`
	SelectedOptionIndex int   `json:"optionIndex"`
	TimeTakenMs         int64 `json:"timeTakenMs"`
}

// AnswerEvent records one scored answer. Never mutated after creation.
type AnswerEvent struct {
	QuestionID          string    `json:"questionId"`
	SelectedOptionIndex int       `json:"selectedOptionIndex"`
	IsCorrect           bool      `json:"isCorrect"`
	TimeTakenMs         int64     `json:"timeTakenMs"`
	ScoreAwarded        int       `json:"scoreAwarded"`
	AnsweredAt          time.Time `json:"answeredAt"`
}

// ScoreBreakdown is the itemised score for a single answer.
type ScoreBreakdown struct {
	Base              int     `json:"base"`
	DifficultyBonus   int     `json:"difficultyBonus"`
	TimeBonus         int     `json:"timeBonus"`
	ComboBonus        int     `json:"comboBonus"`
	ComboMultiplier   float64 `json:"comboMultiplier"`
	TimePenaltyFactor float64 `json:"timePenaltyFactor"`
	Total             int     `json:"total"`
}

// SessionState is the full state of one attempt at the daily quiz.
type SessionState struct {
	SessionID    string          `json:"sessionId"`
	UserID       string          `json:"userId"`
	Day          string          `json:"day"`
	Status       SessionStatus   `json:"status"`
	Questions    []Question      `json:"questions"`
	CurrentIndex int             `json:"currentIndex"`
	Answers      []AnswerEvent   `json:"answers"`
	Combo        int             `json:"combo"`
	MaxCombo     int             `json:"maxCombo"`
	TotalScore   int             `json:"totalScore"`
	SampleData   bool            `json:"sampleData"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	EndedAt      *time.Time      `json:"endedAt,omitempty"`
	Summary      *SessionSummary `json:"summary,omitempty"`
}

// CurrentQuestion returns the question awaiting an answer.
func (s SessionState) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Progress reports the 1-based current question and the share answered.
func (s SessionState) Progress() Progress {
	total := len(s.Questions)
	p := Progress{
		TotalQuestions: total,
		Score:          s.TotalScore,
		Combo:          s.Combo,
	}
	if total == 0 {
		return p
	}
	p.CurrentQuestion = s.CurrentIndex + 1
	if p.CurrentQuestion > total {
		p.CurrentQuestion = total
	}
	p.Percentage = int(math.Round(float64(s.CurrentIndex) / float64(total) * 100))
	return p
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s SessionState) Clone() SessionState {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	out.Answers = append([]AnswerEvent(nil), s.Answers...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.Achievements = append([]string(nil), s.Summary.Achievements...)
		out.Summary = &sum
	}
	return out
}

// Progress is a lightweight view of how far a session got.
type Progress struct {
	CurrentQuestion int `json:"currentQuestion"`
	TotalQuestions  int `json:"totalQuestions"`
	Percentage      int `json:"percentage"`
	Score           int `json:"score"`
	Combo           int `json:"combo"`
}

// SessionSummary is reported when a session completes or times out and archived in history.
type SessionSummary struct {
	SessionID         string        `json:"sessionId"`
	UserID            string        `json:"userId"`
	Day               string        `json:"day"`
	Status            SessionStatus `json:"status"`
	TotalQuestions    int           `json:"totalQuestions"`
	AnsweredQuestions int           `json:"answeredQuestions"`
	CorrectCount      int           `json:"correctCount"`
	MaxCombo          int           `json:"maxCombo"`
	AnswerPoints      int           `json:"answerPoints"`
	PerfectBonus      int           `json:"perfectBonus"`
	FirstOfDayBonus   int           `json:"firstOfDayBonus"`
	TotalScore        int           `json:"totalScore"`
	MaxPossibleScore  int           `json:"maxPossibleScore"`
	Grade             string        `json:"grade"`
	Accuracy          int           `json:"accuracy"`
	AverageTimeMs     int64         `json:"averageTimeMs"`
	DurationMs        int64         `json:"durationMs"`
	StartedAt         time.Time     `json:"startedAt"`
	EndedAt           time.Time     `json:"endedAt"`
	Achievements      []string      `json:"achievements,omitempty"`
}

// Perfect reports whether every question of the session was answered correctly.
func (s SessionSummary) Perfect() bool {
	return s.TotalQuestions > 0 && s.CorrectCount == s.TotalQuestions
}

// AchievementRecord is unlocked at most once per user and type.
type AchievementRecord struct {
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PointsReward int       `json:"pointsReward"`
	UnlockedAt   time.Time `json:"unlockedAt"`
}

// UserStats are the lifetime counters achievements are evaluated against.
type UserStats struct {
	TotalPoints       int `json:"totalPoints"`
	SessionsCompleted int `json:"sessionsCompleted"`
	PerfectSessions   int `json:"perfectSessions"`
}

// Availability is the outcome of the daily gate.
type Availability struct {
	Status            SessionStatus `json:"status"`
	Message           string        `json:"message"`
	NextAvailableTime *time.Time    `json:"nextAvailableTime,omitempty"`
	Day               string        `json:"day"`
	Window            string        `json:"window"`
}
