//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"caltimer/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

// fireRetention caps the audit log; older rows are pruned opportunistically.
const fireRetention = 10000

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutRegistration(ctx context.Context, r Registration) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations(name, second, minute, hour, day_of_month, month, day_of_week, year, timezone, start_at, end_at, every_ns, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   second=excluded.second, minute=excluded.minute, hour=excluded.hour,
		   day_of_month=excluded.day_of_month, month=excluded.month,
		   day_of_week=excluded.day_of_week, year=excluded.year,
		   timezone=excluded.timezone, start_at=excluded.start_at,
		   end_at=excluded.end_at, every_ns=excluded.every_ns`,
		r.Name, r.Second, r.Minute, r.Hour, r.DayOfMonth, r.Month, r.DayOfWeek, r.Year,
		r.Timezone, nullTime(r.Start), nullTime(r.End), int64(r.Every),
		r.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) DeleteRegistration(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE name = ?`, name)
	return err
}

func (s *sqliteStore) ListRegistrations(ctx context.Context) ([]Registration, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, second, minute, hour, day_of_month, month, day_of_week, year, timezone, start_at, end_at, every_ns, created_at
		 FROM registrations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var r Registration
		var start, end, created sql.NullString
		var every int64
		if err := rows.Scan(&r.Name, &r.Second, &r.Minute, &r.Hour, &r.DayOfMonth, &r.Month,
			&r.DayOfWeek, &r.Year, &r.Timezone, &start, &end, &every, &created); err != nil {
			return nil, err
		}
		r.Start = parseTime(start)
		r.End = parseTime(end)
		r.Every = time.Duration(every)
		if created.Valid {
			if t, err := time.Parse(time.RFC3339Nano, created.String); err == nil {
				r.CreatedAt = t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendFire(ctx context.Context, f FireRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if f.At.IsZero() {
		f.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fires(at, name, scheduled, ok, err, took_ms) VALUES(?,?,?,?,?,?)`,
		f.At.Format(time.RFC3339Nano), f.Name, nullTime(f.Scheduled), f.OK, nullStr(f.Error), f.TookMS,
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneFires(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) pruneFires(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM fires WHERE id NOT IN (SELECT id FROM fires ORDER BY id DESC LIMIT ?)`,
		fireRetention)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
