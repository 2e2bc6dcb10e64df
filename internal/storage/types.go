package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "memory": in-process only, lost on restart
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Registration is a persisted timer definition: the raw schedule expression
// exactly as registered, so it can be re-parsed and re-armed on restart.
// Calendar and interval registrations are distinguished by Every.
type Registration struct {
	Name string `json:"name"`

	Second     string `json:"second,omitempty"`
	Minute     string `json:"minute,omitempty"`
	Hour       string `json:"hour,omitempty"`
	DayOfMonth string `json:"day_of_month,omitempty"`
	Month      string `json:"month,omitempty"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
	Year       string `json:"year,omitempty"`

	Timezone string    `json:"timezone,omitempty"`
	Start    time.Time `json:"start,omitempty"`
	End      time.Time `json:"end,omitempty"`

	Every time.Duration `json:"every,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FireRecord logs one timer run.
// Keep it compact and schema-stable.
type FireRecord struct {
	At        time.Time `json:"at"`
	Name      string    `json:"name"`
	Scheduled time.Time `json:"scheduled,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}
