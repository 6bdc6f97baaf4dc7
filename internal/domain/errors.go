package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session has not been opened or was released.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrTimeRestricted is returned outside the daily play window.
	ErrTimeRestricted = errors.New("outside the daily play window")
	// ErrAlreadyPlayedToday is returned once the user used up today's sessions.
	ErrAlreadyPlayedToday = errors.New("already played today")
	// ErrNoQuestionsAvailable indicates the generator produced nothing to ask.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrInvalidTransition indicates an operation called in the wrong session state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrInvalidAnswerIndex indicates an out-of-range option selection.
	ErrInvalidAnswerIndex = errors.New("invalid answer index")
	// ErrQuestionMismatch indicates an answer addressed a question other than the current one.
	ErrQuestionMismatch = errors.New("answer does not match the current question")
	// ErrMalformedQuestion indicates generated content broke the question contract.
	ErrMalformedQuestion = errors.New("malformed question")
	// ErrPersistence marks a retryable storage failure; in-memory state is kept.
	ErrPersistence = errors.New("persistence unavailable")
)

// AvailabilityError carries the structured gate result for a refused session.
type AvailabilityError struct {
	Availability Availability
	reason       error
}

// NewAvailabilityError wraps reason (ErrTimeRestricted or ErrAlreadyPlayedToday).
func NewAvailabilityError(a Availability, reason error) *AvailabilityError {
	return &AvailabilityError{Availability: a, reason: reason}
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("%v: %s", e.reason, e.Availability.Message)
}

func (e *AvailabilityError) Unwrap() error {
	return e.reason
}

// TransitionError reports the operation and the state it was refused in.
type TransitionError struct {
	Op     string
	Status SessionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.Status)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
