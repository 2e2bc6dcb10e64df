package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronSchedule adapts an Expression to robfig/cron's Schedule interface so
// calendar expressions can be handed to the same runner that drives interval
// jobs. cron.Schedule wants strictly-after semantics and signals "never"
// with the zero time.
type cronSchedule struct {
	expr *Expression
}

// Schedule exposes the expression as a robfig/cron Schedule.
func (e *Expression) Schedule() cron.Schedule {
	return cronSchedule{expr: e}
}

func (c cronSchedule) Next(t time.Time) time.Time {
	// Nudging past t turns at-or-after into strictly-after: Next rounds
	// any sub-second remainder up to the following whole second.
	next, ok := c.expr.Next(t.Add(time.Nanosecond))
	if !ok {
		return time.Time{}
	}
	return next
}
