package http

import (
	"errors"
	"net/http"

	"daily-quiz-service/internal/domain"
)

type errorPayload struct {
	Code         string               `json:"code"`
	Message      string               `json:"message"`
	Availability *domain.Availability `json:"availability,omitempty"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrSessionNotFound, "session_not_found", http.StatusNotFound},
	{domain.ErrTimeRestricted, "time_restricted", http.StatusForbidden},
	{domain.ErrAlreadyPlayedToday, "already_played", http.StatusConflict},
	{domain.ErrNoQuestionsAvailable, "no_questions", http.StatusUnprocessableEntity},
	{domain.ErrInvalidTransition, "invalid_transition", http.StatusConflict},
	{domain.ErrInvalidAnswerIndex, "invalid_answer", http.StatusBadRequest},
	{domain.ErrQuestionMismatch, "question_mismatch", http.StatusConflict},
	{domain.ErrMalformedQuestion, "malformed_question", http.StatusInternalServerError},
	{domain.ErrPersistence, "persistence_unavailable", http.StatusServiceUnavailable},
}

// toErrorPayload maps a service error onto its wire code and HTTP status.
func toErrorPayload(err error) (errorPayload, int) {
	payload := errorPayload{Code: "internal", Message: err.Error()}
	status := http.StatusInternalServerError
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			payload.Code, status = e.code, e.status
			break
		}
	}
	var availErr *domain.AvailabilityError
	if errors.As(err, &availErr) {
		a := availErr.Availability
		payload.Availability = &a
	}
	return payload, status
}
