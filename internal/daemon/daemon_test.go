package daemon

import (
	"context"
	"strings"
	"testing"

	"caltimer/internal/config"
	"caltimer/pkg/logx"
)

func TestCommandJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ok := commandJob(logx.Nop(), "ok", []string{"sh", "-c", "exit 0"})
	if err := ok(ctx); err != nil {
		t.Fatalf("successful command: %v", err)
	}

	bad := commandJob(logx.Nop(), "bad", []string{"sh", "-c", "echo oops >&2; exit 3"})
	err := bad(ctx)
	if err == nil {
		t.Fatal("failing command returned nil error")
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Fatalf("error misses captured output: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := func() *config.Config {
		return &config.Config{
			Timers: config.TimersConfig{Enabled: true, Workers: 2},
			Schedules: []config.ScheduleConfig{
				{Name: "nightly", Hour: "2", Minute: "30", Command: []string{"backup.sh"}},
				{Name: "pulse", Every: "5m", Command: []string{"ping.sh"}},
			},
		}
	}

	if err := validateConfig(ctx, base()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative workers", func(c *config.Config) { c.Timers.Workers = -1 }},
		{"bad timezone", func(c *config.Config) { c.Timers.Timezone = "Mars/Olympus" }},
		{"missing name", func(c *config.Config) { c.Schedules[0].Name = "" }},
		{"duplicate name", func(c *config.Config) { c.Schedules[1].Name = "nightly" }},
		{"missing command", func(c *config.Config) { c.Schedules[0].Command = nil }},
		{"bad expression", func(c *config.Config) { c.Schedules[0].Minute = "61" }},
		{"bad every", func(c *config.Config) { c.Schedules[1].Every = "soon" }},
		{"bad timeout", func(c *config.Config) { c.Schedules[0].Timeout = "-5s" }},
		{"bad start", func(c *config.Config) { c.Schedules[0].Start = "tomorrow" }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			if err := validateConfig(ctx, cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCalendarOf(t *testing.T) {
	t.Parallel()
	sc := config.ScheduleConfig{
		Name:      "windowed",
		Hour:      "9",
		DayOfWeek: "mon-fri",
		Start:     "2026-01-01T00:00:00Z",
		End:       "2026-12-31T23:59:59Z",
		Command:   []string{"job.sh"},
	}
	cal, err := calendarOf(sc)
	if err != nil {
		t.Fatalf("calendarOf: %v", err)
	}
	if cal.Start.IsZero() || cal.End.IsZero() {
		t.Fatalf("window not parsed: %+v", cal)
	}
	if !cal.End.After(cal.Start) {
		t.Fatalf("end %v not after start %v", cal.End, cal.Start)
	}
}
