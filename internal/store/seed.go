package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"jobmill/internal/payload"
	"jobmill/pkg/logx"
)

// Seed file shape. Calendars marked global are stored under GlobalTenant,
// the same constant the resolver falls back to.
type seedFile struct {
	Definitions []seedDefinition `yaml:"definitions"`
	Calendars   []seedCalendar   `yaml:"calendars"`
}

type seedDefinition struct {
	Tenant     string         `yaml:"tenant"`
	Job        string         `yaml:"job"`
	Version    int            `yaml:"version"`
	Class      string         `yaml:"class"`
	Cron       string         `yaml:"cron"`
	Enabled    *bool          `yaml:"enabled"` // omitted means enabled
	Calendar   string         `yaml:"calendar"`
	Parameters map[string]any `yaml:"parameters"`
}

type seedCalendar struct {
	Tenant string       `yaml:"tenant"`
	Global bool         `yaml:"global"`
	Name   string       `yaml:"name"`
	Type   string       `yaml:"type"`
	Rule   CalendarRule `yaml:"rule"`
	Parent string       `yaml:"parent"`
}

// Seed loads a YAML seed file into the store. It is upsert-based and safe to
// re-run against an already-seeded store.
func Seed(ctx context.Context, w Writer, path string, log logx.Logger) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}

	for i, c := range f.Calendars {
		tenant := strings.TrimSpace(c.Tenant)
		if c.Global {
			tenant = GlobalTenant
		}
		if tenant == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("seed %s: calendar %d: tenant (or global) and name required", path, i)
		}
		typ, err := ParseCalendarType(c.Type)
		if err != nil {
			return fmt.Errorf("seed %s: calendar %s: %w", path, c.Name, err)
		}
		cal := JobCalendar{TenantID: tenant, Name: c.Name, Type: typ, Rule: c.Rule, Parent: c.Parent}
		if err := w.PutCalendar(ctx, cal); err != nil {
			return fmt.Errorf("seed %s: calendar %s: %w", path, c.Name, err)
		}
	}

	for i, d := range f.Definitions {
		if d.Tenant == "" || d.Job == "" || d.Version <= 0 {
			return fmt.Errorf("seed %s: definition %d: tenant, job and positive version required", path, i)
		}
		params, err := toPayload(d.Parameters)
		if err != nil {
			return fmt.Errorf("seed %s: definition %s/%s: %w", path, d.Tenant, d.Job, err)
		}
		def := JobDefinition{
			TenantID:       d.Tenant,
			JobID:          d.Job,
			Version:        d.Version,
			JobClass:       d.Class,
			CronExpression: d.Cron,
			Enabled:        d.Enabled == nil || *d.Enabled,
			Parameters:     params,
			CalendarName:   d.Calendar,
		}
		if err := w.PutDefinition(ctx, def); err != nil {
			return fmt.Errorf("seed %s: definition %s/%s: %w", path, d.Tenant, d.Job, err)
		}
	}

	log.Info("store seeded",
		logx.String("path", path),
		logx.Int("definitions", len(f.Definitions)),
		logx.Int("calendars", len(f.Calendars)))
	return nil
}

// toPayload routes YAML values through JSON so they land as tagged payload
// values with the same typing rules the sqlite driver uses.
func toPayload(m map[string]any) (payload.Value, error) {
	if len(m) == 0 {
		return payload.Null(), nil
	}
	b, err := json.Marshal(normalizeYAML(m))
	if err != nil {
		return payload.Value{}, err
	}
	return payload.FromJSON(b)
}

// normalizeYAML ensures all map keys are strings so the value can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
