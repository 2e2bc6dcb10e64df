package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Timers controls the timer service: worker pool, per-run defaults and
	// the catch-up limiter used after the host was suspended.
	Timers TimersConfig `json:"timers"`

	Storage *StorageConfig `json:"storage,omitempty"`

	// Debug enables the local status/pprof HTTP endpoint.
	Debug *DebugConfig `json:"debug,omitempty"`

	// Schedules declares the timers registered at startup. Each entry is
	// either a calendar schedule (the seven per-field expressions) or an
	// interval schedule (every), never both.
	Schedules []ScheduleConfig `json:"schedules"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TimersConfig holds timer service knobs.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "0s" (disabled)
//   - history_size: 200
//   - catch_up_per_sec: 8
type TimersConfig struct {
	Enabled bool `json:"enabled"`
	Workers int  `json:"workers,omitempty"`

	QueueSize int `json:"queue_size,omitempty"`

	// DefaultTimeout applies to runs whose schedule declares no timeout.
	// Use "0s" to disable a global default.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// CatchUpPerSec bounds how many overdue fires per second are released
	// when the process resumes after a long pause.
	CatchUpPerSec int `json:"catch_up_per_sec,omitempty"`

	// Timezone is the default IANA zone for schedules that declare none.
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig selects the persistence backend for timer registrations and
// the fire audit log.
//
// Driver values: "file", "memory", "sqlite" (build tag), "" or "none" to
// disable.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DebugConfig controls the optional debug HTTP server. Binding beyond
// loopback requires a token or an explicit allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// ScheduleConfig is one declarative timer. The seven calendar fields follow
// the schedule expression grammar; empty fields default to "*" except
// second, which defaults to "0".
type ScheduleConfig struct {
	Name string `json:"name"`

	Second     string `json:"second,omitempty"`
	Minute     string `json:"minute,omitempty"`
	Hour       string `json:"hour,omitempty"`
	DayOfMonth string `json:"day_of_month,omitempty"`
	Month      string `json:"month,omitempty"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
	Year       string `json:"year,omitempty"`

	Timezone string `json:"timezone,omitempty"`
	Start    string `json:"start,omitempty"` // RFC 3339
	End      string `json:"end,omitempty"`   // RFC 3339

	// Every selects an interval schedule instead of a calendar one,
	// e.g. "5m" or "1h30m".
	Every string `json:"every,omitempty"`

	// Command is executed on each fire: argv[0] plus arguments.
	Command []string `json:"command"`

	Timeout string `json:"timeout,omitempty"`
}

// Calendar reports whether the entry uses the calendar grammar (as opposed
// to a plain interval).
func (s ScheduleConfig) Calendar() bool { return s.Every == "" }
