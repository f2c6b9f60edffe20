package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"jobmill/internal/payload"
	"jobmill/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (*sqliteStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
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

func (s *sqliteStore) PutDefinition(ctx context.Context, def JobDefinition) error {
	params, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_definitions(tenant_id, job_id, version, job_class, cron_expr, enabled, parameters, calendar)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(tenant_id, job_id, version) DO UPDATE SET
		   job_class=excluded.job_class, cron_expr=excluded.cron_expr,
		   enabled=excluded.enabled, parameters=excluded.parameters, calendar=excluded.calendar`,
		def.TenantID, def.JobID, def.Version, def.JobClass, def.CronExpression,
		boolInt(def.Enabled), string(params), nullStr(def.CalendarName),
	)
	return err
}

func (s *sqliteStore) PutCalendar(ctx context.Context, cal JobCalendar) error {
	rule, err := json.Marshal(cal.Rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_calendars(tenant_id, name, type, rule, parent)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(tenant_id, name) DO UPDATE SET
		   type=excluded.type, rule=excluded.rule, parent=excluded.parent`,
		cal.TenantID, cal.Name, string(cal.Type), string(rule), nullStr(cal.Parent),
	)
	return err
}

func (s *sqliteStore) ListEnabledDefinitions(ctx context.Context) ([]JobDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, job_id, version, job_class, cron_expr, parameters, calendar
		 FROM job_definitions WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobDefinition
	for rows.Next() {
		var (
			d        JobDefinition
			params   sql.NullString
			calendar sql.NullString
		)
		if err := rows.Scan(&d.TenantID, &d.JobID, &d.Version, &d.JobClass,
			&d.CronExpression, &params, &calendar); err != nil {
			return nil, err
		}
		d.Enabled = true
		d.CalendarName = calendar.String
		if params.Valid && params.String != "" {
			v, err := payload.FromJSON([]byte(params.String))
			if err != nil {
				return nil, fmt.Errorf("decode parameters for %s/%s v%d: %w",
					d.TenantID, d.JobID, d.Version, err)
			}
			d.Parameters = v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FindCalendar(ctx context.Context, tenantID, name string) (JobCalendar, bool, error) {
	var (
		cal    JobCalendar
		typ    string
		rule   sql.NullString
		parent sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, name, type, rule, parent FROM job_calendars
		 WHERE tenant_id = ? AND name = ?`, tenantID, name,
	).Scan(&cal.TenantID, &cal.Name, &typ, &rule, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return JobCalendar{}, false, nil
	}
	if err != nil {
		return JobCalendar{}, false, err
	}
	cal.Type, err = ParseCalendarType(typ)
	if err != nil {
		return JobCalendar{}, false, fmt.Errorf("calendar %s/%s: %w", tenantID, name, err)
	}
	cal.Parent = parent.String
	if rule.Valid && rule.String != "" {
		if err := json.Unmarshal([]byte(rule.String), &cal.Rule); err != nil {
			return JobCalendar{}, false, fmt.Errorf("decode rule for %s/%s: %w", tenantID, name, err)
		}
	}
	return cal, true, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
