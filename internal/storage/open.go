package storage

import (
	"context"
	"errors"
	"strings"

	"caltimer/pkg/logx"
)

// Store is the minimal persistence API used by the timer service.
type Store interface {
	PutRegistration(ctx context.Context, r Registration) error
	DeleteRegistration(ctx context.Context, name string) error
	ListRegistrations(ctx context.Context) ([]Registration, error)
	AppendFire(ctx context.Context, f FireRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "memory":
		return newMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
