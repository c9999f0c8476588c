package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Mode is the user's timing intent, fixed at resolution time.
type Mode int

const (
	Immediate Mode = iota
	Scheduled
	Recurring
	Smart
)

var modeNames = map[Mode]string{
	Immediate: "immediate",
	Scheduled: "scheduled",
	Recurring: "recurring",
	Smart:     "smart",
}

func (m Mode) String() string { return modeNames[m] }

// ModeFromString maps the API schedule_type field to a Mode.
func ModeFromString(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown schedule type %q", s)
}

// DefaultHour is the time-of-day used when a scheduled date carries no time,
// and the hour the smart suggestion targets.
const DefaultHour = 10

var (
	ErrMissingDate    = errors.New("scheduled mode requires a date")
	ErrMissingPattern = errors.New("recurring mode requires a recurrence pattern")
	ErrPastSchedule   = errors.New("scheduled time must be in the future")
)

// Request carries the mode-specific scheduling inputs from the API layer.
type Request struct {
	Mode     Mode
	Date     string // "2006-01-02", scheduled/smart modes
	Time     string // "15:04", optional, defaults to DefaultHour:00
	Timezone string // IANA name, optional, defaults to UTC
	Pattern  *RecurrencePattern
}

// Resolved is a single concrete (runAt, recurrence) pair. Recurrence is nil
// for one-shot campaigns.
type Resolved struct {
	RunAt      time.Time
	Recurrence *RecurrencePattern
}

// Resolve turns a timing intent into a concrete next run. All validation
// failures surface here, never at run time.
func Resolve(req Request, now time.Time) (Resolved, error) {
	loc, err := loadLocation(req.Timezone)
	if err != nil {
		return Resolved{}, err
	}

	switch req.Mode {
	case Immediate:
		return Resolved{RunAt: now}, nil

	case Scheduled:
		return resolveFixed(req, now, loc)

	case Smart:
		// Suggestion pre-fills the candidate; explicit inputs win.
		if req.Date == "" {
			suggested := SuggestSmartTime(now.In(loc))
			req.Date = suggested.Format("2006-01-02")
			if req.Time == "" {
				req.Time = suggested.Format("15:04")
			}
		}
		return resolveFixed(req, now, loc)

	case Recurring:
		if req.Pattern == nil {
			return Resolved{}, ErrMissingPattern
		}
		if err := req.Pattern.Validate(); err != nil {
			return Resolved{}, err
		}
		next, err := req.Pattern.NextRun(now.In(loc))
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{RunAt: next, Recurrence: req.Pattern}, nil
	}
	return Resolved{}, fmt.Errorf("unknown schedule mode %d", req.Mode)
}

func resolveFixed(req Request, now time.Time, loc *time.Location) (Resolved, error) {
	if req.Date == "" {
		return Resolved{}, ErrMissingDate
	}
	tod := req.Time
	if tod == "" {
		tod = fmt.Sprintf("%02d:00", DefaultHour)
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+tod, loc)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid schedule date/time: %w", err)
	}
	if !at.After(now) {
		return Resolved{}, ErrPastSchedule
	}
	return Resolved{RunAt: at}, nil
}

// SuggestSmartTime returns the heuristic send-time suggestion: the next
// business day at DefaultHour, skipping Saturdays and Sundays.
func SuggestSmartTime(now time.Time) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), DefaultHour, 0, 0, 0, now.Location())
	t = t.AddDate(0, 0, 1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
