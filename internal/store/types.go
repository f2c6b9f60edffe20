package store

import (
	"fmt"
	"strings"
	"time"

	"jobmill/internal/payload"
)

// GlobalTenant is the sentinel tenant under which shared calendars are
// stored. It is a contract boundary: the seeding path writes global rows
// under this exact value and the resolver falls back to this exact value.
// The two sides must share this constant; a casing or value drift between
// them silently breaks global calendar resolution.
const GlobalTenant = "GLOBAL"

// CalendarType tags the exclusion rule a calendar row carries.
type CalendarType string

const (
	CalendarAnnual  CalendarType = "ANNUAL"
	CalendarHoliday CalendarType = "HOLIDAY"
	CalendarWeekly  CalendarType = "WEEKLY"
	CalendarDaily   CalendarType = "DAILY"
	CalendarMonthly CalendarType = "MONTHLY"
	CalendarCron    CalendarType = "CRON"
	CalendarBase    CalendarType = "BASE"
)

// ParseCalendarType normalizes and validates a stored type tag.
func ParseCalendarType(s string) (CalendarType, error) {
	t := CalendarType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case CalendarAnnual, CalendarHoliday, CalendarWeekly, CalendarDaily,
		CalendarMonthly, CalendarCron, CalendarBase:
		return t, nil
	default:
		return "", fmt.Errorf("unknown calendar type %q", s)
	}
}

// CalendarRule holds the type-dependent exclusion data. Only the fields for
// the row's CalendarType are meaningful; the rest stay zero.
type CalendarRule struct {
	// ANNUAL
	Month int `json:"month,omitempty" yaml:"month,omitempty"`
	Day   int `json:"day,omitempty" yaml:"day,omitempty"`

	// HOLIDAY: one-off dates, "2006-01-02"
	Dates []string `json:"dates,omitempty" yaml:"dates,omitempty"`

	// WEEKLY: weekday names ("monday" ... "sunday")
	Weekdays []string `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`

	// MONTHLY: day-of-month numbers 1..31
	DaysOfMonth []int `json:"days_of_month,omitempty" yaml:"days_of_month,omitempty"`

	// DAILY: time-of-day window, "HH:MM". Invert restricts firing to the
	// window instead of excluding it.
	WindowStart string `json:"window_start,omitempty" yaml:"window_start,omitempty"`
	WindowEnd   string `json:"window_end,omitempty" yaml:"window_end,omitempty"`
	Invert      bool   `json:"invert,omitempty" yaml:"invert,omitempty"`

	// CRON: secondary cron expression whose fire set is excluded.
	Cron string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// JobCalendar is one stored calendar row.
type JobCalendar struct {
	TenantID string
	Name     string
	Type     CalendarType
	Rule     CalendarRule
	// Parent chains another calendar, resolved in the same tenant-then-global
	// scope as any other reference. Acyclicity is NOT guaranteed here; the
	// builder enforces it.
	Parent string
}

// JobDefinition is one stored job row. (TenantID, JobID, Version) is unique;
// only Enabled rows participate in registration.
type JobDefinition struct {
	TenantID       string
	JobID          string
	Version        int
	JobClass       string
	CronExpression string
	Enabled        bool
	Parameters     payload.Value
	CalendarName   string
}

// JobDependency records that a job depends on another. The relation is part
// of the data model but nothing resolves or enforces it yet; no ordering or
// gating behavior consumes these rows.
type JobDependency struct {
	TenantID  string
	JobID     string
	DependsOn string
}

// ExecutionRecord is the shape of a job execution history row. Nothing
// writes these yet; the schema keeps the slot for a future observability
// requirement.
type ExecutionRecord struct {
	Key        string
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// Config configures the store.
//
// Driver values: "sqlite" or "memory". Empty defaults to "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
