package timers

import (
	"context"
	"time"

	"caltimer/internal/schedule"
)

// Config holds timer service knobs.
type Config struct {
	Enabled bool
	Workers int

	QueueSize int

	// DefaultTimeout applies to runs whose registration declares none.
	DefaultTimeout time.Duration

	HistorySize int

	// CatchUpPerSec bounds how many overdue fires per second are released
	// after a long pause (suspend/resume, clock jump).
	CatchUpPerSec int

	// Timezone is the default IANA zone for calendar registrations that
	// declare none.
	Timezone string
}

// Job is the callback invoked on each fire.
type Job func(ctx context.Context) error

// Calendar is a calendar-expression registration: seven raw field strings
// plus an optional validity window and timezone. Empty fields take the
// engine defaults ("*", and "0" for second).
type Calendar struct {
	Second     string
	Minute     string
	Hour       string
	DayOfMonth string
	Month      string
	DayOfWeek  string
	Year       string

	Timezone string
	Start    time.Time
	End      time.Time
}

// Spec maps the registration onto the engine's parse input, filling in the
// service default timezone when the registration declares none.
func (c Calendar) Spec(defaultTZ string) schedule.Spec {
	tz := c.Timezone
	if tz == "" {
		tz = defaultTZ
	}
	return schedule.Spec{
		Second:     c.Second,
		Minute:     c.Minute,
		Hour:       c.Hour,
		DayOfMonth: c.DayOfMonth,
		Month:      c.Month,
		DayOfWeek:  c.DayOfWeek,
		Year:       c.Year,
		Timezone:   tz,
		Start:      c.Start,
		End:        c.End,
	}
}

// Event types published on the bus.
const (
	EventFireStarted  = "fire.started"
	EventFireFinished = "fire.finished"
	EventFireFailed   = "fire.failed"
)

// FireEvent is the bus payload for fire lifecycle events.
type FireEvent struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// HistoryItem records one completed run.
type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type task struct {
	name    string
	timeout time.Duration
	run     Job
}

// timerDef is one registered timer: exactly one of expr/every is set.
type timerDef struct {
	name    string
	cal     *Calendar
	expr    *schedule.Expression
	every   time.Duration
	timeout time.Duration
	job     Job
}
