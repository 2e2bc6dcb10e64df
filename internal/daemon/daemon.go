// Package daemon wires the pieces of caltimerd together: config manager,
// logging service, storage backend and the timer service, plus the config
// hot-reload loop.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"caltimer/internal/config"
	"caltimer/internal/eventbus"
	"caltimer/internal/observability/debug"
	"caltimer/internal/schedule"
	"caltimer/internal/storage"
	"caltimer/internal/timers"
	"caltimer/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	logs *logx.Service
	log  logx.Logger

	store storage.Store
	bus   eventbus.Bus
	tsvc  *timers.Service
	dbg   *debug.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// names of schedules currently registered from config, for reload diffing
	regNames map[string]bool
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	tcfg, err := timersConfig(cfg.Timers)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New()
	tsvc := timers.New(tcfg, store, log.With(logx.String("comp", "timers")))
	tsvc.SetBus(bus)

	dbg := debug.New(debugConfig(cfg), tsvc, bus, log.With(logx.String("comp", "debug")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log,
		store:    store,
		bus:      bus,
		tsvc:     tsvc,
		dbg:      dbg,
		regNames: map[string]bool{},
	}, nil
}

func debugConfig(cfg *config.Config) debug.Config {
	if cfg.Debug == nil {
		return debug.Config{}
	}
	return debug.Config{
		Enabled:       cfg.Debug.Enabled,
		Addr:          cfg.Debug.Addr,
		Token:         cfg.Debug.Token,
		AllowInsecure: cfg.Debug.AllowInsecure,
	}
}

// Timers exposes the timer service (status queries, tests).
func (a *App) Timers() *timers.Service { return a.tsvc }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	cfg := a.cfgm.Get()
	if err := a.registerSchedules(runCtx, cfg.Schedules); err != nil {
		cancel()
		return err
	}

	if a.tsvc.Enabled() {
		a.tsvc.Start(runCtx)
	}
	a.dbg.Start(runCtx)

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error("config watch failed", logx.Err(err))
		}
	}()

	a.log.Info("daemon started", logx.Int("schedules", len(cfg.Schedules)))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	a.tsvc.Stop(stopCtx)
	a.dbg.Stop(stopCtx)
	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close storage failed", logx.Err(err))
		}
	}
	a.log.Info("daemon stopped")
	return a.logs.Close()
}

// registerSchedules upserts the declarative timers and removes entries that
// disappeared from config.
func (a *App) registerSchedules(ctx context.Context, entries []config.ScheduleConfig) error {
	seen := map[string]bool{}
	for _, sc := range entries {
		if err := a.registerOne(ctx, sc); err != nil {
			return err
		}
		seen[sc.Name] = true
	}
	for name := range a.regNames {
		if !seen[name] {
			if err := a.tsvc.Remove(ctx, name); err != nil {
				a.log.Warn("remove stale schedule failed", logx.String("timer", name), logx.Err(err))
			}
		}
	}
	a.regNames = seen
	return nil
}

func (a *App) registerOne(ctx context.Context, sc config.ScheduleConfig) error {
	timeout, err := config.ParseDurationField(fmt.Sprintf("schedules[%s].timeout", sc.Name), sc.Timeout)
	if err != nil {
		return err
	}
	job := commandJob(a.log.With(logx.String("comp", "runner")), sc.Name, sc.Command)

	if !sc.Calendar() {
		every, err := config.ParseDurationField(fmt.Sprintf("schedules[%s].every", sc.Name), sc.Every)
		if err != nil {
			return err
		}
		return a.tsvc.AddInterval(ctx, sc.Name, every, timeout, job)
	}

	cal, err := calendarOf(sc)
	if err != nil {
		return err
	}
	return a.tsvc.AddCalendar(ctx, sc.Name, cal, timeout, job)
}

func calendarOf(sc config.ScheduleConfig) (timers.Calendar, error) {
	cal := timers.Calendar{
		Second:     sc.Second,
		Minute:     sc.Minute,
		Hour:       sc.Hour,
		DayOfMonth: sc.DayOfMonth,
		Month:      sc.Month,
		DayOfWeek:  sc.DayOfWeek,
		Year:       sc.Year,
		Timezone:   sc.Timezone,
	}
	var err error
	if cal.Start, err = parseTimeField(fmt.Sprintf("schedules[%s].start", sc.Name), sc.Start); err != nil {
		return cal, err
	}
	if cal.End, err = parseTimeField(fmt.Sprintf("schedules[%s].end", sc.Name), sc.End); err != nil {
		return cal, err
	}
	return cal, nil
}

func parseTimeField(path, raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid RFC 3339 time %q: %w", path, raw, err)
	}
	return t, nil
}

func timersConfig(tc config.TimersConfig) (timers.Config, error) {
	defaultTimeout, err := config.ParseDurationField("timers.default_timeout", tc.DefaultTimeout)
	if err != nil {
		return timers.Config{}, err
	}
	return timers.Config{
		Enabled:        tc.Enabled,
		Workers:        tc.Workers,
		QueueSize:      tc.QueueSize,
		DefaultTimeout: defaultTimeout,
		HistorySize:    tc.HistorySize,
		CatchUpPerSec:  tc.CatchUpPerSec,
		Timezone:       tc.Timezone,
	}, nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the newest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(ctx, newCfg)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	prevEnabled := a.tsvc.Enabled()
	tcfg, err := timersConfig(cfg.Timers)
	if err != nil {
		// The validator parses durations before commit, so this is unexpected.
		a.log.Warn("invalid timers config on reload; keeping previous", logx.Err(err))
		return
	}
	a.tsvc.Apply(tcfg)

	if err := a.registerSchedules(ctx, cfg.Schedules); err != nil {
		a.log.Warn("schedule registration failed on reload", logx.Err(err))
	}

	a.dbg.Reconfigure(ctx, debugConfig(cfg))

	switch {
	case prevEnabled && !cfg.Timers.Enabled:
		a.log.Info("timer service disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.tsvc.Stop(stopCtx)
		cancel()
	case !prevEnabled && cfg.Timers.Enabled:
		a.log.Info("timer service enabled via config")
		a.tsvc.Start(ctx)
	}

	a.log.Info("config reloaded")
}

// validateConfig gates hot reloads: a config that fails here is never
// committed, so a typo in a live-edited file cannot take down the daemon.
func validateConfig(ctx context.Context, cfg *config.Config) error {
	if cfg.Timers.Workers < 0 {
		return fmt.Errorf("timers.workers must be >= 0")
	}
	if cfg.Timers.QueueSize < 0 {
		return fmt.Errorf("timers.queue_size must be >= 0")
	}
	if _, err := config.ParseDurationField("timers.default_timeout", cfg.Timers.DefaultTimeout); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Timers.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timers.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	seen := map[string]bool{}
	for i, sc := range cfg.Schedules {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return fmt.Errorf("schedules[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("schedules[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if len(sc.Command) == 0 || strings.TrimSpace(sc.Command[0]) == "" {
			return fmt.Errorf("schedules[%s]: command is required", name)
		}
		if _, err := config.ParseDurationField(fmt.Sprintf("schedules[%s].timeout", name), sc.Timeout); err != nil {
			return err
		}
		if !sc.Calendar() {
			every, err := config.ParseDurationField(fmt.Sprintf("schedules[%s].every", name), sc.Every)
			if err != nil {
				return err
			}
			if every <= 0 {
				return fmt.Errorf("schedules[%s].every: must be positive", name)
			}
			continue
		}
		cal, err := calendarOf(sc)
		if err != nil {
			return err
		}
		if _, err := schedule.Parse(calendarSpec(cal, cfg.Timers.Timezone)); err != nil {
			return fmt.Errorf("schedules[%s]: %w", name, err)
		}
	}
	return nil
}

func calendarSpec(cal timers.Calendar, defaultTZ string) schedule.Spec {
	tz := cal.Timezone
	if tz == "" {
		tz = defaultTZ
	}
	return schedule.Spec{
		Second:     cal.Second,
		Minute:     cal.Minute,
		Hour:       cal.Hour,
		DayOfMonth: cal.DayOfMonth,
		Month:      cal.Month,
		DayOfWeek:  cal.DayOfWeek,
		Year:       cal.Year,
		Timezone:   tz,
		Start:      cal.Start,
		End:        cal.End,
	}
}
