package domain

import (
	"fmt"
	"iter"
	"time"
)

// Frequency is the recurrence cadence. Only a fixed monthly-interval pattern
// is supported.
type Frequency string

// FrequencyMonthly repeats every Interval months on DayOfMonth.
const FrequencyMonthly Frequency = "MONTHLY"

// RecurrencePattern is an immutable value encoding a recurrence rule.
// DayOfMonth is the anchor day; when it exceeds the length of a generated
// month it clamps to that month's last day for that occurrence only.
type RecurrencePattern struct {
	Frequency  Frequency `json:"frequency"`
	Interval   int       `json:"interval"`
	DayOfMonth int       `json:"day_of_month"`
}

// NewMonthlyPattern validates and constructs a monthly recurrence pattern.
func NewMonthlyPattern(interval, dayOfMonth int) (RecurrencePattern, error) {
	if interval < 1 {
		return RecurrencePattern{}, NewValidationError(fmt.Sprintf("recurrence interval must be at least 1, got %d", interval))
	}
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return RecurrencePattern{}, NewValidationError(fmt.Sprintf("recurrence day of month must be between 1 and 31, got %d", dayOfMonth))
	}
	return RecurrencePattern{
		Frequency:  FrequencyMonthly,
		Interval:   interval,
		DayOfMonth: dayOfMonth,
	}, nil
}

// Validate re-checks pattern parameters, for rules loaded from storage.
func (p RecurrencePattern) Validate() error {
	_, err := NewMonthlyPattern(p.Interval, p.DayOfMonth)
	return err
}

// occurrenceInMonth returns the pattern's occurrence date in the month that
// lies monthsFromAnchor whole months after the anchor month.
func (p RecurrencePattern) occurrenceInMonth(anchorYear int, anchorMonth time.Month, monthsFromAnchor int) time.Time {
	// Stepping is always computed from the first of the anchor month so the
	// clamp never accumulates drift across short months.
	first := time.Date(anchorYear, anchorMonth, 1, 0, 0, 0, 0, time.UTC).AddDate(0, monthsFromAnchor, 0)
	day := p.DayOfMonth
	if max := DaysInMonth(first.Year(), first.Month()); day > max {
		day = max
	}
	return Date(first.Year(), first.Month(), day)
}

// Schedule binds a RecurrencePattern to a rule's start/end dates.
type Schedule struct {
	Pattern   RecurrencePattern
	StartDate time.Time
	EndDate   *time.Time // inclusive; nil means open-ended
}

// OccurrencesBetween returns the schedule's occurrence dates inside
// [rangeStart, rangeEnd], ascending. The sequence is lazy, finite, and
// restartable: ranging over it twice yields the same dates. Each date d
// satisfies d >= max(StartDate, rangeStart) and
// d <= min(EndDate, rangeEnd).
func (s Schedule) OccurrencesBetween(rangeStart, rangeEnd time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		start := DateOf(s.StartDate)
		lower := DateOf(rangeStart)
		if start.After(lower) {
			lower = start
		}
		upper := DateOf(rangeEnd)
		if s.EndDate != nil {
			if end := DateOf(*s.EndDate); end.Before(upper) {
				upper = end
			}
		}
		if upper.Before(lower) {
			return
		}

		interval := s.Pattern.Interval
		for k := 0; ; k++ {
			occ := s.Pattern.occurrenceInMonth(start.Year(), start.Month(), k*interval)
			if occ.Before(start) {
				// The anchor day in the start month can precede the rule's
				// start date; that month produces no occurrence.
				continue
			}
			if occ.After(upper) {
				return
			}
			if occ.Before(lower) {
				continue
			}
			if !yield(occ) {
				return
			}
		}
	}
}

// OccurrenceOn reports whether the schedule produces an occurrence on the
// given date.
func (s Schedule) OccurrenceOn(date time.Time) bool {
	d := DateOf(date)
	for occ := range s.OccurrencesBetween(d, d) {
		return occ.Equal(d)
	}
	return false
}
