package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"caltimer/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.fires.jsonl              (append-only JSON Lines)
//   - <prefix>.regs.snapshot.json       (periodic snapshot)
//   - <prefix>.regs.journal.jsonl       (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	fireFile *os.File

	snapshotPath string
	journalFile  *os.File
	regs         map[string]Registration

	journalWrites int
}

// journalEntry is one registration mutation. A nil Reg means deletion.
type journalEntry struct {
	Name string        `json:"name"`
	Reg  *Registration `json:"reg,omitempty"`
}

const compactEvery = 64

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	firePath := prefix + ".fires.jsonl"
	snapPath := prefix + ".regs.snapshot.json"
	journalPath := prefix + ".regs.journal.jsonl"

	ff, err := os.OpenFile(firePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	// Load registrations from snapshot, then replay the journal over it.
	regs := map[string]Registration{}
	_ = loadSnapshot(snapPath, regs)
	_ = replayJournal(journalPath, regs)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = ff.Close()
		return nil, err
	}

	return &fileStore{
		log:          log,
		fireFile:     ff,
		snapshotPath: snapPath,
		journalFile:  jf,
		regs:         regs,
	}, nil
}

func loadSnapshot(path string, into map[string]Registration) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var regs []Registration
	if err := json.Unmarshal(b, &regs); err != nil {
		return err
	}
	for _, r := range regs {
		into[r.Name] = r
	}
	return nil
}

func replayJournal(path string, into map[string]Registration) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e journalEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// Torn tail write; stop replaying.
			break
		}
		if e.Reg == nil {
			delete(into, e.Name)
		} else {
			into[e.Name] = *e.Reg
		}
	}
	return sc.Err()
}

func (s *fileStore) PutRegistration(ctx context.Context, r Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrDisabled
	}
	s.regs[r.Name] = r
	return s.appendJournalLocked(journalEntry{Name: r.Name, Reg: &r})
}

func (s *fileStore) DeleteRegistration(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrDisabled
	}
	delete(s.regs, name)
	return s.appendJournalLocked(journalEntry{Name: name})
}

func (s *fileStore) appendJournalLocked(e journalEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := s.journalFile.Write(append(b, '\n')); err != nil {
		return err
	}
	s.journalWrites++
	if s.journalWrites >= compactEvery {
		s.compactLocked()
	}
	return nil
}

// compactLocked folds the journal into a fresh snapshot and truncates it.
// Best effort: a failed compaction leaves the journal intact.
func (s *fileStore) compactLocked() {
	regs := make([]Registration, 0, len(s.regs))
	for _, r := range s.regs {
		regs = append(regs, r)
	}
	b, err := json.Marshal(regs)
	if err != nil {
		return
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		s.log.Warn("storage snapshot write failed", logx.Err(err))
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		s.log.Warn("storage snapshot rename failed", logx.Err(err))
		return
	}
	if err := s.journalFile.Truncate(0); err == nil {
		_, _ = s.journalFile.Seek(0, 0)
		s.journalWrites = 0
	}
}

func (s *fileStore) ListRegistrations(ctx context.Context) ([]Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Registration, 0, len(s.regs))
	for _, r := range s.regs {
		out = append(out, r)
	}
	return out, nil
}

func (s *fileStore) AppendFire(ctx context.Context, f FireRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fireFile == nil {
		return ErrDisabled
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.fireFile.Write(append(b, '\n'))
	return err
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.fireFile != nil {
		err1 = s.fireFile.Close()
		s.fireFile = nil
	}
	if s.journalFile != nil {
		err2 = s.journalFile.Close()
		s.journalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}
