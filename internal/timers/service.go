package timers

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"caltimer/internal/eventbus"
	"caltimer/internal/schedule"
	"caltimer/internal/storage"
	"caltimer/pkg/logx"
)

// Service owns timer registrations and their execution. The store may be nil
// (persistence disabled).
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store  storage.Store
	bus    eventbus.Bus
	parser cron.Parser

	defs map[string]*timerDef

	c         *cron.Cron
	entries   map[string]cron.EntryID
	queue     chan task
	limiter   *rate.Limiter
	stopCh    chan struct{}
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log,
		store: store,
		// Descriptor enables "@every <duration>" for interval timers.
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:    map[string]*timerDef{},
		entries: map[string]cron.EntryID{},
	}
}

// SetBus attaches an event bus for fire lifecycle notifications. Call before
// Start.
func (s *Service) SetBus(b eventbus.Bus) {
	s.mu.Lock()
	s.bus = b
	s.mu.Unlock()
}

// Enabled reports the current config flag. Apply may run concurrently.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	s.limiter = newLimiter(cfg.CatchUpPerSec)

	if s.stopCh == nil {
		return
	}
	if oldTZ != newTZ {
		// Restart cron with the new location and re-arm definitions.
		s.restartLocked()
	}
}

// AddCalendar registers (or replaces) a named calendar timer. The expression
// is parsed eagerly and a parse error is returned as-is, so callers can
// errors.Is against the schedule package sentinels.
func (s *Service) AddCalendar(ctx context.Context, name string, cal Calendar, timeout time.Duration, job Job) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoName
	}
	if job == nil {
		return ErrNoJob
	}
	s.mu.Lock()
	defaultTZ := s.cfg.Timezone
	s.mu.Unlock()

	expr, err := schedule.Parse(cal.Spec(defaultTZ))
	if err != nil {
		return fmt.Errorf("timer %q: %w", name, err)
	}

	c := cal
	def := &timerDef{name: name, cal: &c, expr: expr, timeout: timeout, job: job}
	s.persist(ctx, def)
	s.register(def)
	return nil
}

// AddInterval registers (or replaces) a named fixed-interval timer.
func (s *Service) AddInterval(ctx context.Context, name string, every time.Duration, timeout time.Duration, job Job) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoName
	}
	if job == nil {
		return ErrNoJob
	}
	if every <= 0 {
		return fmt.Errorf("timer %q: %w", name, ErrBadEvery)
	}
	def := &timerDef{name: name, every: every, timeout: timeout, job: job}
	s.persist(ctx, def)
	s.register(def)
	return nil
}

// Remove deletes a timer by name, disarming it if running.
func (s *Service) Remove(ctx context.Context, name string) error {
	s.mu.Lock()
	_, ok := s.defs[name]
	if ok {
		s.disarmLocked(name)
		delete(s.defs, name)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("timer %q: %w", name, ErrNotFound)
	}
	if s.store != nil {
		if err := s.store.DeleteRegistration(ctx, name); err != nil {
			s.log.Warn("delete registration failed", logx.String("timer", name), logx.Err(err))
		}
	}
	return nil
}

// Restore re-registers persisted timers. The binder maps a registration name
// back to its job; unbound names are skipped with a warning since the
// callback cannot be recovered from storage.
func (s *Service) Restore(ctx context.Context, bind func(name string) (Job, time.Duration, bool)) error {
	if s.store == nil || bind == nil {
		return nil
	}
	regs, err := s.store.ListRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("restore timers: %w", err)
	}
	for _, reg := range regs {
		job, timeout, ok := bind(reg.Name)
		if !ok {
			s.log.Warn("stored timer has no job binding; skipping", logx.String("timer", reg.Name))
			continue
		}
		if reg.Every > 0 {
			def := &timerDef{name: reg.Name, every: reg.Every, timeout: timeout, job: job}
			s.register(def)
			continue
		}
		cal := Calendar{
			Second:     reg.Second,
			Minute:     reg.Minute,
			Hour:       reg.Hour,
			DayOfMonth: reg.DayOfMonth,
			Month:      reg.Month,
			DayOfWeek:  reg.DayOfWeek,
			Year:       reg.Year,
			Timezone:   reg.Timezone,
			Start:      reg.Start,
			End:        reg.End,
		}
		s.mu.Lock()
		defaultTZ := s.cfg.Timezone
		s.mu.Unlock()
		expr, err := schedule.Parse(cal.Spec(defaultTZ))
		if err != nil {
			s.log.Warn("stored timer no longer parses; skipping", logx.String("timer", reg.Name), logx.Err(err))
			continue
		}
		def := &timerDef{name: reg.Name, cal: &cal, expr: expr, timeout: timeout, job: job}
		s.register(def)
	}
	s.log.Info("timers restored", logx.Int("count", len(regs)))
	return nil
}

// NextFire reports the next fire time of a named timer. For calendar timers
// this is computed from the expression even while the service is stopped; a
// false result means the timer is unknown, exhausted, or an interval timer
// that is not currently armed.
func (s *Service) NextFire(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.defs[name]
	if !ok {
		return time.Time{}, false
	}
	if def.expr != nil {
		return def.expr.Next(time.Now())
	}
	if s.c == nil {
		return time.Time{}, false
	}
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	next := s.c.Entry(id).Next
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// History returns a copy of the run history, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

// Names returns the registered timer names.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.defs))
	for name := range s.defs {
		out = append(out, name)
	}
	return out
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	cur := s.cfg
	s.mu.Unlock()
	s.log.Debug("start requested",
		logx.Bool("enabled", cur.Enabled),
		logx.Int("workers", cur.Workers),
		logx.String("tz", strings.TrimSpace(cur.Timezone)))
	// If a Stop is in progress, wait for it to complete so two worker pools
	// never overlap.
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.startLocked()
}

// startLocked arms cron and the worker pool. s.mu must be held and stopCh,
// runCtx must be set.
func (s *Service) startLocked() {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := s.cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	// Fresh queue per run so a stop/start toggle cannot replay stale tasks.
	s.queue = make(chan task, queueSize)
	s.limiter = newLimiter(s.cfg.CatchUpPerSec)

	loc := s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.entries = map[string]cron.EntryID{}

	for _, def := range s.defs {
		s.armLocked(def)
	}

	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in timer worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}
	s.c.Start()
	s.log.Info("timer service started",
		logx.Int("workers", workers),
		logx.String("tz", loc.String()),
		logx.Int("timers", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		// A stop is already in progress; wait best-effort.
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.c = nil
	s.entries = map[string]cron.EntryID{}
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	// Finalize in background so Stop can honor the caller's deadline.
	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.queue = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("timer service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

// restartLocked tears down cron and re-arms everything; workers keep running.
func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.entries = map[string]cron.EntryID{}
	for _, def := range s.defs {
		s.armLocked(def)
	}
	s.c.Start()
	s.log.Info("timer runner restarted", logx.String("tz", loc.String()))
}

// register installs (or replaces) a definition and arms it if running.
func (s *Service) register(def *timerDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.defs[def.name]; exists {
		s.disarmLocked(def.name)
	}
	s.defs[def.name] = def
	if s.stopCh != nil && s.c != nil {
		s.armLocked(def)
	}
}

func (s *Service) armLocked(def *timerDef) {
	fn := func() { s.enqueue(task{name: def.name, timeout: def.timeout, run: def.job}) }
	if def.expr != nil {
		id := s.c.Schedule(def.expr.Schedule(), cron.FuncJob(fn))
		s.entries[def.name] = id
		return
	}
	id, err := s.c.AddFunc(fmt.Sprintf("@every %s", def.every), fn)
	if err != nil {
		// The descriptor is generated from a validated duration.
		s.log.Error("arm interval timer failed", logx.String("timer", def.name), logx.Err(err))
		return
	}
	s.entries[def.name] = id
}

func (s *Service) disarmLocked(name string) {
	if s.c == nil {
		return
	}
	if id, ok := s.entries[name]; ok {
		s.c.Remove(id)
		delete(s.entries, name)
	}
}

func (s *Service) persist(ctx context.Context, def *timerDef) {
	if s.store == nil {
		return
	}
	reg := storage.Registration{
		Name:      def.name,
		Every:     def.every,
		CreatedAt: time.Now().UTC(),
	}
	if def.cal != nil {
		reg.Second = def.cal.Second
		reg.Minute = def.cal.Minute
		reg.Hour = def.cal.Hour
		reg.DayOfMonth = def.cal.DayOfMonth
		reg.Month = def.cal.Month
		reg.DayOfWeek = def.cal.DayOfWeek
		reg.Year = def.cal.Year
		reg.Timezone = def.cal.Timezone
		reg.Start = def.cal.Start
		reg.End = def.cal.End
	}
	if err := s.store.PutRegistration(ctx, reg); err != nil {
		s.log.Warn("persist registration failed", logx.String("timer", def.name), logx.Err(err))
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to UTC", logx.String("tz", tz), logx.Err(err))
		return time.UTC
	}
	return loc
}

func newLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), perSec)
}
