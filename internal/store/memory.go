package store

import (
	"context"
	"sync"
)

type calendarKey struct {
	tenant string
	name   string
}

type defKey struct {
	tenant  string
	job     string
	version int
}

// Memory is a map-backed store. It implements both Store and Writer and is
// safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	defs      map[defKey]JobDefinition
	calendars map[calendarKey]JobCalendar
}

func NewMemory() *Memory {
	return &Memory{
		defs:      map[defKey]JobDefinition{},
		calendars: map[calendarKey]JobCalendar{},
	}
}

func (m *Memory) PutDefinition(_ context.Context, def JobDefinition) error {
	m.mu.Lock()
	m.defs[defKey{def.TenantID, def.JobID, def.Version}] = def
	m.mu.Unlock()
	return nil
}

func (m *Memory) PutCalendar(_ context.Context, cal JobCalendar) error {
	m.mu.Lock()
	m.calendars[calendarKey{cal.TenantID, cal.Name}] = cal
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListEnabledDefinitions(_ context.Context) ([]JobDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobDefinition, 0, len(m.defs))
	for _, d := range m.defs {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) FindCalendar(_ context.Context, tenantID, name string) (JobCalendar, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cal, ok := m.calendars[calendarKey{tenantID, name}]
	return cal, ok, nil
}

func (m *Memory) Close() error { return nil }
