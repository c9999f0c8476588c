package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Recurrence types.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

var (
	ErrBadRecurrenceType = errors.New("recurrence type must be daily, weekly or monthly")
	ErrBadInterval       = errors.New("recurrence interval must be a positive integer")
	ErrEmptyWeekdays     = errors.New("weekly recurrence requires at least one weekday")
	ErrBadWeekday        = errors.New("weekdays must be between 0 (Sunday) and 6 (Saturday)")
	ErrBadTimeOfDay      = errors.New("recurrence time must be HH:MM")
)

// RecurrencePattern describes how successive run times are derived.
// Days uses 0=Sunday..6=Saturday and only applies to weekly patterns.
type RecurrencePattern struct {
	Type     string `json:"type"`
	Interval int    `json:"interval"`
	Days     []int  `json:"days,omitempty"`
	Time     string `json:"time"`
}

// ParsePattern decodes a stored JSON pattern and validates it.
func ParsePattern(raw string) (*RecurrencePattern, error) {
	var p RecurrencePattern
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("parse recurrence pattern: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// JSON encodes the pattern for storage.
func (p *RecurrencePattern) JSON() string {
	b, _ := json.Marshal(p)
	return string(b)
}

func (p *RecurrencePattern) Validate() error {
	switch p.Type {
	case RecurDaily, RecurMonthly:
	case RecurWeekly:
		if len(p.Days) == 0 {
			return ErrEmptyWeekdays
		}
		for _, d := range p.Days {
			if d < 0 || d > 6 {
				return ErrBadWeekday
			}
		}
	default:
		return ErrBadRecurrenceType
	}
	if p.Interval < 1 {
		return ErrBadInterval
	}
	if _, _, err := p.clock(); err != nil {
		return err
	}
	return nil
}

func (p *RecurrencePattern) clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", p.Time)
	if err != nil {
		return 0, 0, ErrBadTimeOfDay
	}
	return t.Hour(), t.Minute(), nil
}

func (p *RecurrencePattern) onDay(d time.Weekday) bool {
	for _, day := range p.Days {
		if time.Weekday(day) == d {
			return true
		}
	}
	return false
}

// NextRun computes the next run strictly after now, in now's location.
// Pure: the same (pattern, now) always yields the same instant.
func (p *RecurrencePattern) NextRun(now time.Time) (time.Time, error) {
	if err := p.Validate(); err != nil {
		return time.Time{}, err
	}
	hour, minute, _ := p.clock()
	loc := now.Location()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)

	switch p.Type {
	case RecurDaily:
		for !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, p.Interval)
		}

	case RecurWeekly:
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		for !p.onDay(candidate.Weekday()) {
			candidate = candidate.AddDate(0, 0, 1)
			// interval applies at week granularity: skip ahead when the
			// scan wraps into a new week
			if p.Interval > 1 && candidate.Weekday() == time.Sunday {
				candidate = candidate.AddDate(0, 0, 7*(p.Interval-1))
			}
		}

	case RecurMonthly:
		day := now.Day()
		for !candidate.After(now) {
			candidate = addMonthsClamped(candidate, p.Interval, day, hour, minute)
		}
	}
	return candidate, nil
}

// addMonthsClamped steps forward by months, clamping the wanted day-of-month
// to the last valid day of the target month (day 31 in February becomes 28/29).
func addMonthsClamped(t time.Time, months, wantDay, hour, minute int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, hour, minute, 0, 0, t.Location()).AddDate(0, months, 0)
	day := wantDay
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
