package app

import (
	"context"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
)

// DayLayout formats the calendar-day key used for the daily limit and history.
const DayLayout = "2006-01-02"

// Window is the daily play window [StartHour, EndHour) in local hours.
// EndHour <= StartHour wraps past midnight.
type Window struct {
	StartHour int
	EndHour   int
}

// Contains reports whether the hour of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.Hour()
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

// NextStart returns the first window opening strictly after t, or today's
// opening when t is before it.
func (w Window) NextStart(t time.Time) time.Time {
	today := time.Date(t.Year(), t.Month(), t.Day(), w.StartHour, 0, 0, 0, t.Location())
	if t.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// TomorrowStart returns tomorrow's window opening.
func (w Window) TomorrowStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, w.StartHour, 0, 0, 0, t.Location())
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", w.StartHour, w.EndHour)
}

// CheckAvailability evaluates the daily gate without side effects.
// Having used up today's plays takes precedence over the time window.
func (s *QuizService) CheckAvailability(ctx context.Context, userID string) (domain.Availability, error) {
	now := s.localNow()
	day := now.Format(DayLayout)

	plays, err := s.store.CountPlays(ctx, userID, day)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("%w: count plays: %v", domain.ErrPersistence, err)
	}
	return s.evaluate(now, plays), nil
}

func (s *QuizService) evaluate(now time.Time, plays int) domain.Availability {
	a := domain.Availability{
		Day:    now.Format(DayLayout),
		Window: s.cfg.Window.String(),
	}

	switch {
	case plays >= s.cfg.DailyLimit:
		next := s.cfg.Window.TomorrowStart(now)
		a.Status = domain.StatusCompleted
		a.Message = "You have already played today. Come back tomorrow."
		a.NextAvailableTime = &next
	case !s.cfg.Window.Contains(now):
		next := s.cfg.Window.NextStart(now)
		a.Status = domain.StatusNotAvailable
		a.Message = fmt.Sprintf("The daily quiz is open %s.", s.cfg.Window)
		a.NextAvailableTime = &next
	default:
		a.Status = domain.StatusReady
		a.Message = "The daily quiz is ready."
	}
	return a
}

// availabilityErr maps a refused gate result to its error.
func availabilityErr(a domain.Availability) error {
	switch a.Status {
	case domain.StatusCompleted:
		return domain.NewAvailabilityError(a, domain.ErrAlreadyPlayedToday)
	case domain.StatusNotAvailable:
		return domain.NewAvailabilityError(a, domain.ErrTimeRestricted)
	}
	return nil
}

func (s *QuizService) localNow() time.Time {
	return s.now().In(s.cfg.Location)
}
