// Package debug serves an optional local HTTP endpoint with timer status,
// recent fire events and the net/http/pprof profiles.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"caltimer/internal/eventbus"
	"caltimer/internal/timers"
	"caltimer/pkg/logx"
)

const eventRing = 100

type Config struct {
	Enabled bool
	Addr    string // default 127.0.0.1:6060

	// Token gates all endpoints when set (Bearer header or ?token=).
	Token string

	// AllowInsecure permits a non-loopback bind without a token.
	AllowInsecure bool
}

// TimerStatus is the read-only view the /timers endpoint serves.
type TimerStatus interface {
	Names() []string
	NextFire(name string) (time.Time, bool)
	History() []timers.HistoryItem
}

type Server struct {
	mu     sync.Mutex
	log    logx.Logger
	cfg    Config
	status TimerStatus
	bus    eventbus.Bus

	srv   *http.Server
	ln    net.Listener
	unsub func()

	emu    sync.Mutex
	events []eventbus.Event
}

func New(cfg Config, status TimerStatus, bus eventbus.Bus, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, status: status, bus: bus, log: log}
}

// Reconfigure applies cfg, starting, stopping or restarting the listener as
// needed. Safe to call from the config hot-reload path.
func (s *Server) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.Start(ctx)
	case prev != cfg:
		s.Stop(ctx)
		s.Start(ctx)
	}
}

func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil || !s.cfg.Enabled {
		return
	}
	cfg := s.cfg

	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	// A non-loopback bind without auth is almost always a config mistake.
	if !cfg.AllowInsecure && cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Error("debug server refused to start: non-loopback addr requires token or allow_insecure",
			logx.String("addr", addr))
		return
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("debug listen failed", logx.String("addr", addr), logx.Err(err))
		return
	}

	if s.bus != nil {
		ch, unsub := s.bus.Subscribe(32)
		s.unsub = unsub
		go s.collect(ch)
	}

	srv := &http.Server{
		Handler:      s.routes(cfg.Token),
		ReadTimeout:  5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.srv = srv
	s.ln = ln

	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("debug server exited", logx.Err(err))
		}
	}()
	s.log.Info("debug server started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cfg.Token != ""))
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	unsub := s.unsub
	s.srv = nil
	s.ln = nil
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if srv != nil {
		_ = srv.Shutdown(ctx)
		_ = srv.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
}

func (s *Server) collect(ch <-chan eventbus.Event) {
	for e := range ch {
		s.emu.Lock()
		s.events = append(s.events, e)
		if len(s.events) > eventRing {
			s.events = s.events[len(s.events)-eventRing:]
		}
		s.emu.Unlock()
	}
}

func (s *Server) routes(token string) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(token, h) }

	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/timers", wrap(s.handleTimers))
	mux.HandleFunc("/events", wrap(s.handleEvents))

	mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))
	return mux
}

type timerInfo struct {
	Name string     `json:"name"`
	Next *time.Time `json:"next,omitempty"`
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		http.Error(w, "no timer service", http.StatusServiceUnavailable)
		return
	}
	names := s.status.Names()
	out := struct {
		Timers  []timerInfo         `json:"timers"`
		History []timers.HistoryItem `json:"history"`
	}{Timers: make([]timerInfo, 0, len(names))}
	for _, name := range names {
		info := timerInfo{Name: name}
		if next, ok := s.status.NextFire(name); ok {
			info.Next = &next
		}
		out.Timers = append(out.Timers, info)
	}
	out.History = s.status.History()
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.emu.Lock()
	events := make([]eventbus.Event, len(s.events))
	copy(events, s.events)
	s.emu.Unlock()
	writeJSON(w, struct {
		Events []eventbus.Event `json:"events"`
	}{Events: events})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		if ah := r.Header.Get("Authorization"); ah != "" {
			const p = "Bearer "
			if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				h(w, r)
				return
			}
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.Trim(host, "[]")
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
