package service

import (
	"time"

	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

// maxCalculationIterations is the absolute cap on holiday-walk steps. The
// proportional bound below trips first for any sane enrollment; this one
// exists so malformed holiday data can never loop the engine.
const maxCalculationIterations = 500

// HolidayCalendar is an immutable snapshot of non-teaching dates. All
// calculations against one snapshot are deterministic.
type HolidayCalendar struct {
	dates map[string]struct{}
}

// NewHolidayCalendar builds a calendar from a list of dates. Time-of-day and
// zone are discarded; a holiday is a calendar date.
func NewHolidayCalendar(dates []time.Time) HolidayCalendar {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[dateKey(d)] = struct{}{}
	}
	return HolidayCalendar{dates: set}
}

// IsHoliday reports whether d falls on a non-teaching date.
func (c HolidayCalendar) IsHoliday(d time.Time) bool {
	_, ok := c.dates[dateKey(d)]
	return ok
}

// Len returns the number of holidays in the snapshot.
func (c HolidayCalendar) Len() int {
	return len(c.dates)
}

// EffectiveEndDate returns the deadline of an enrollment: starting from the
// first lesson date, one weekly advance per paid lesson, then one per
// granted extension week. An advance landing on a holiday is pushed forward
// whole weeks until it clears (a push is re-tested, since it can land on
// another holiday). The walk scans at most twice the requested weeks and
// hard-fails with CalculationDivergence beyond the absolute cap rather than
// looping on corrupt data.
func EffectiveEndDate(start time.Time, lessonsPaid, extensionWeeks int, cal HolidayCalendar) (time.Time, error) {
	if lessonsPaid < 0 || extensionWeeks < 0 {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "lesson and extension counts must not be negative")
	}

	budget := 2 * (lessonsPaid + extensionWeeks)
	if budget > maxCalculationIterations {
		budget = maxCalculationIterations
	}

	current := DateOnly(start)
	iterations := 0
	for i := 0; i < lessonsPaid+extensionWeeks; i++ {
		next, err := advanceWeek(current, cal, &iterations, budget)
		if err != nil {
			return time.Time{}, err
		}
		current = next
	}
	return current, nil
}

// WeeklyLessonDates enumerates the dates the generator should emit sessions
// on: the first lesson date itself (pushed off holidays), then one date per
// remaining lesson with the same holiday-skip rule. Shares the divergence
// bound with EffectiveEndDate.
func WeeklyLessonDates(firstLesson time.Time, count int, cal HolidayCalendar) ([]time.Time, error) {
	if count <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson count must be positive")
	}

	budget := 2 * count
	if budget > maxCalculationIterations {
		budget = maxCalculationIterations
	}

	iterations := 0
	current := DateOnly(firstLesson)
	for cal.IsHoliday(current) {
		current = current.AddDate(0, 0, 7)
		iterations++
		if iterations > budget {
			return nil, appErrors.Clone(appErrors.ErrCalculationDivergence, "holiday skip exceeded scan bound while placing the first lesson")
		}
	}

	dates := make([]time.Time, 0, count)
	dates = append(dates, current)
	for len(dates) < count {
		next, err := advanceWeek(current, cal, &iterations, budget)
		if err != nil {
			return nil, err
		}
		current = next
		dates = append(dates, current)
	}
	return dates, nil
}

func advanceWeek(from time.Time, cal HolidayCalendar, iterations *int, budget int) (time.Time, error) {
	current := from.AddDate(0, 0, 7)
	*iterations++
	for cal.IsHoliday(current) {
		current = current.AddDate(0, 0, 7)
		*iterations++
		if *iterations > budget {
			return time.Time{}, appErrors.Clone(appErrors.ErrCalculationDivergence, "holiday skip exceeded scan bound")
		}
	}
	if *iterations > budget {
		return time.Time{}, appErrors.Clone(appErrors.ErrCalculationDivergence, "weekly walk exceeded scan bound")
	}
	return current, nil
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
