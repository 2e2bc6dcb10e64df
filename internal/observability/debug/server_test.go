package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caltimer/internal/eventbus"
	"caltimer/internal/timers"
	"caltimer/pkg/logx"
)

type fakeStatus struct {
	next time.Time
}

func (f *fakeStatus) Names() []string { return []string{"nightly"} }
func (f *fakeStatus) NextFire(name string) (time.Time, bool) {
	return f.next, !f.next.IsZero()
}
func (f *fakeStatus) History() []timers.HistoryItem {
	return []timers.HistoryItem{{Name: "nightly", Started: f.next.Add(-24 * time.Hour)}}
}

func TestTimersEndpoint(t *testing.T) {
	t.Parallel()
	next := time.Date(2026, 9, 1, 2, 30, 0, 0, time.UTC)
	s := New(Config{}, &fakeStatus{next: next}, nil, logx.Nop())

	rec := httptest.NewRecorder()
	s.routes("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Timers []struct {
			Name string     `json:"name"`
			Next *time.Time `json:"next"`
		} `json:"timers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Timers) != 1 || got.Timers[0].Name != "nightly" {
		t.Fatalf("timers = %+v", got.Timers)
	}
	if got.Timers[0].Next == nil || !got.Timers[0].Next.Equal(next) {
		t.Fatalf("next = %v, want %v", got.Timers[0].Next, next)
	}
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{Token: "s3cret"}, &fakeStatus{}, nil, logx.Nop())
	h := s.routes("s3cret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer token: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?token=s3cret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("query token: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?token=wrong", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rec.Code)
	}
}

func TestEventsRing(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, &fakeStatus{}, bus, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	bus.Publish(eventbus.Event{Type: timers.EventFireFinished, Data: timers.FireEvent{Name: "nightly"}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := httptest.NewRecorder()
		s.routes("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
		var got struct {
			Events []eventbus.Event `json:"events"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Events) == 1 && got.Events[0].Type == timers.EventFireFinished {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("event never arrived: %+v", got.Events)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoopbackGuard(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:6060": true,
		"[::1]:6060":     true,
		"0.0.0.0:6060":   false,
		"10.0.0.5:6060":  false,
		"6060":           false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
