package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  level: debug
  console: true
timers:
  enabled: true
  workers: 4
  default_timeout: "30s"
storage:
  driver: memory
schedules:
  - name: nightly
    minute: "30"
    hour: "2"
    timezone: "Asia/Jakarta"
    command: ["/usr/local/bin/backup", "--full"]
  - name: poll
    every: "5m"
    command: ["/bin/true"]
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Timers.Enabled || cfg.Timers.Workers != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Schedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(cfg.Schedules))
	}
	if !cfg.Schedules[0].Calendar() {
		t.Error("nightly should be a calendar schedule")
	}
	if cfg.Schedules[1].Calendar() {
		t.Error("poll should be an interval schedule")
	}
	if got := m.Get(); got != cfg {
		t.Error("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.yaml", `
logging:
  level: info
  verbosity: extreme
timers:
  enabled: true
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "config.json", `{"timers":{"enabled":true}} {"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("timers.default_timeout", "45s")
	if err != nil || d != 45*time.Second {
		t.Fatalf("ParseDurationField = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("timers.default_timeout", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	d, err = ParseDurationOrDefault("timers.default_timeout", "", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("ParseDurationOrDefault = (%v, %v)", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("expected a published config")
	}
	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}
