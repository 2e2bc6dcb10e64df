package storage

import (
	"context"
	"sync"
)

// memoryStore keeps everything in process memory. Useful for tests and for
// deployments that re-declare all timers from config at startup anyway.
type memoryStore struct {
	mu    sync.Mutex
	regs  map[string]Registration
	fires []FireRecord
}

const memoryFireCap = 1000

func newMemory() Store {
	return &memoryStore{regs: map[string]Registration{}}
}

func (s *memoryStore) PutRegistration(ctx context.Context, r Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[r.Name] = r
	return nil
}

func (s *memoryStore) DeleteRegistration(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regs, name)
	return nil
}

func (s *memoryStore) ListRegistrations(ctx context.Context) ([]Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Registration, 0, len(s.regs))
	for _, r := range s.regs {
		out = append(out, r)
	}
	return out, nil
}

func (s *memoryStore) AppendFire(ctx context.Context, f FireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fires = append(s.fires, f)
	if len(s.fires) > memoryFireCap {
		s.fires = s.fires[len(s.fires)-memoryFireCap:]
	}
	return nil
}

func (s *memoryStore) Close() error { return nil }
