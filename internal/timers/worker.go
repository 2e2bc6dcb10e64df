package timers

import (
	"context"
	"time"

	"caltimer/internal/eventbus"
	"caltimer/internal/storage"
	"caltimer/pkg/logx"
)

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("timer service not running; dropping fire", logx.String("timer", t.name))
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("timer queue full; dropping fire",
			logx.String("timer", t.name),
			logx.Int("queue_len", len(q)),
			logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	bus := s.bus
	s.mu.Unlock()

	// Pace the drain after a backlog (suspend/resume) so a burst of overdue
	// fires does not land at once.
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	start := time.Now()
	scheduled := start
	if bus != nil {
		bus.Publish(eventbus.Event{Type: EventFireStarted, Time: start, Data: FireEvent{Name: t.name, Started: start}})
	}

	timeout := t.timeout
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	err := t.run(runCtx)
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	item := HistoryItem{Name: t.name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("timer run failed", logx.String("timer", t.name), logx.Err(err), logx.Duration("dur", dur))
		if bus != nil {
			bus.Publish(eventbus.Event{Type: EventFireFailed, Data: FireEvent{Name: t.name, Started: start, Duration: dur, Error: item.Error}})
		}
	} else if dur >= 750*time.Millisecond {
		s.log.Info("timer run completed", logx.String("timer", t.name), logx.Duration("dur", dur))
	} else {
		s.log.Debug("timer run completed", logx.String("timer", t.name), logx.Duration("dur", dur))
	}
	if err == nil && bus != nil {
		bus.Publish(eventbus.Event{Type: EventFireFinished, Data: FireEvent{Name: t.name, Started: start, Duration: dur}})
	}

	s.recordFire(t.name, scheduled, start, dur, err)

	s.hmu.Lock()
	s.history = append(s.history, item)
	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = 200
	}
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

// recordFire appends to the persistent fire log, best effort. A short
// independent deadline keeps a slow disk from blocking the worker.
func (s *Service) recordFire(name string, scheduled, started time.Time, dur time.Duration, runErr error) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec := storage.FireRecord{
		At:        started.UTC(),
		Name:      name,
		Scheduled: scheduled.UTC(),
		OK:        runErr == nil,
		TookMS:    dur.Milliseconds(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := s.store.AppendFire(ctx, rec); err != nil {
		s.log.Warn("append fire record failed", logx.String("timer", name), logx.Err(err))
	}
}
