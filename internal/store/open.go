package store

import (
	"context"
	"errors"
	"strings"

	"jobmill/pkg/logx"
)

// Store is the read capability the scheduler core consumes.
type Store interface {
	// ListEnabledDefinitions returns all enabled job rows, order-insensitive.
	ListEnabledDefinitions(ctx context.Context) ([]JobDefinition, error)
	// FindCalendar looks up one exact (tenant, name) row. ok is false on miss.
	FindCalendar(ctx context.Context, tenantID, name string) (JobCalendar, bool, error)
	Close() error
}

// Writer is the seeding-only write capability. The registration core never
// uses it.
type Writer interface {
	PutDefinition(ctx context.Context, def JobDefinition) error
	PutCalendar(ctx context.Context, cal JobCalendar) error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
}
