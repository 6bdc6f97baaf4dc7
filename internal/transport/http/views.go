package http

import (
	"daily-quiz-service/internal/domain"
)

// questionView is a question as the player sees it, without the answer.
type questionView struct {
	Index      int               `json:"index"`
	ID         string            `json:"id"`
	Prompt     string            `json:"prompt"`
	Options    []string          `json:"options"`
	Difficulty domain.Difficulty `json:"difficulty"`
	PointsBase int               `json:"pointsBase"`
}

func newQuestionView(index int, q domain.Question) questionView {
	return questionView{
		Index:      index,
		ID:         q.ID,
		Prompt:     q.Prompt,
		Options:    append([]string(nil), q.Options...),
		Difficulty: q.Difficulty,
		PointsBase: q.PointsBase,
	}
}

type sessionView struct {
	SessionID      string                 `json:"sessionId"`
	UserID         string                 `json:"userId"`
	Day            string                 `json:"day"`
	Status         domain.SessionStatus   `json:"status"`
	TotalQuestions int                    `json:"totalQuestions"`
	SampleData     bool                   `json:"sampleData"`
	Progress       domain.Progress        `json:"progress"`
	Question       *questionView          `json:"question,omitempty"`
	Summary        *domain.SessionSummary `json:"summary,omitempty"`
}

func newSessionView(state domain.SessionState) sessionView {
	view := sessionView{
		SessionID:      state.SessionID,
		UserID:         state.UserID,
		Day:            state.Day,
		Status:         state.Status,
		TotalQuestions: len(state.Questions),
		SampleData:     state.SampleData,
		Progress:       state.Progress(),
		Summary:        state.Summary,
	}
	if state.Status == domain.StatusInProgress {
		if q, ok := state.CurrentQuestion(); ok {
			qv := newQuestionView(state.CurrentIndex, q)
			view.Question = &qv
		}
	}
	return view
}

type answerResultView struct {
	QuestionIndex      int                   `json:"questionIndex"`
	Correct            bool                  `json:"correct"`
	CorrectOptionIndex int                   `json:"correctOptionIndex"`
	Explanation        string                `json:"explanation"`
	Awarded            int                   `json:"awarded"`
	Breakdown          domain.ScoreBreakdown `json:"breakdown"`
	Progress           domain.Progress       `json:"progress"`
	Status             domain.SessionStatus  `json:"status"`
}
