package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jobmill/internal/store"
)

// Exclusion reports whether firing at t must be suppressed.
type Exclusion interface {
	Excludes(t time.Time) bool
}

// chain is the OR-fold over a resolved parent chain: excluded if any link
// excludes. An empty chain excludes nothing.
type chain []Exclusion

func (c chain) Excludes(t time.Time) bool {
	for _, e := range c {
		if e.Excludes(t) {
			return true
		}
	}
	return false
}

// None is the no-exclusions calendar.
var None Exclusion = chain(nil)

// SecondOptional keeps both 5-field and 6-field (with seconds) specs working,
// matching the engine's parser.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// compileRule maps one calendar row to its own exclusion rule. BASE rows
// carry no rule of their own and yield nil.
func compileRule(cal store.JobCalendar) (Exclusion, error) {
	r := cal.Rule
	switch cal.Type {
	case store.CalendarAnnual:
		if r.Month < 1 || r.Month > 12 {
			return nil, fmt.Errorf("annual: month %d out of range", r.Month)
		}
		if r.Day < 1 || r.Day > 31 {
			return nil, fmt.Errorf("annual: day %d out of range", r.Day)
		}
		return annualRule{month: time.Month(r.Month), day: r.Day}, nil

	case store.CalendarHoliday:
		dates := make(map[string]struct{}, len(r.Dates))
		for _, d := range r.Dates {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return nil, fmt.Errorf("holiday: invalid date %q", d)
			}
			dates[d] = struct{}{}
		}
		return holidayRule{dates: dates}, nil

	case store.CalendarWeekly:
		var days [7]bool
		for _, name := range r.Weekdays {
			wd, err := parseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("weekly: %w", err)
			}
			days[wd] = true
		}
		return weeklyRule{days: days}, nil

	case store.CalendarDaily:
		start, err := parseHHMM(r.WindowStart)
		if err != nil {
			return nil, fmt.Errorf("daily: window_start: %w", err)
		}
		end, err := parseHHMM(r.WindowEnd)
		if err != nil {
			return nil, fmt.Errorf("daily: window_end: %w", err)
		}
		if end < start {
			return nil, fmt.Errorf("daily: window end %q before start %q", r.WindowEnd, r.WindowStart)
		}
		return dailyRule{startMin: start, endMin: end, invert: r.Invert}, nil

	case store.CalendarMonthly:
		days := make(map[int]struct{}, len(r.DaysOfMonth))
		for _, d := range r.DaysOfMonth {
			if d < 1 || d > 31 {
				return nil, fmt.Errorf("monthly: day %d out of range", d)
			}
			days[d] = struct{}{}
		}
		return monthlyRule{days: days}, nil

	case store.CalendarCron:
		sched, err := cronParser.Parse(r.Cron)
		if err != nil {
			return nil, fmt.Errorf("cron rule %q: %w", r.Cron, err)
		}
		return cronRule{sched: sched}, nil

	case store.CalendarBase:
		// Carries only a parent reference.
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown calendar type %q", cal.Type)
	}
}

// annualRule excludes one month+day every year.
type annualRule struct {
	month time.Month
	day   int
}

func (r annualRule) Excludes(t time.Time) bool {
	return t.Month() == r.month && t.Day() == r.day
}

// holidayRule excludes specific one-off dates.
type holidayRule struct {
	dates map[string]struct{}
}

func (r holidayRule) Excludes(t time.Time) bool {
	_, ok := r.dates[t.Format("2006-01-02")]
	return ok
}

// weeklyRule excludes whole weekdays.
type weeklyRule struct {
	days [7]bool
}

func (r weeklyRule) Excludes(t time.Time) bool {
	return r.days[t.Weekday()]
}

// dailyRule treats the window as the permitted firing window: instants
// outside [start, end] are excluded. Invert flips that, excluding the window
// itself.
type dailyRule struct {
	startMin int
	endMin   int
	invert   bool
}

func (r dailyRule) Excludes(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	inside := m >= r.startMin && m <= r.endMin
	if r.invert {
		return inside
	}
	return !inside
}

// monthlyRule excludes day-of-month numbers.
type monthlyRule struct {
	days map[int]struct{}
}

func (r monthlyRule) Excludes(t time.Time) bool {
	_, ok := r.days[t.Day()]
	return ok
}

// cronRule excludes instants belonging to a secondary cron expression's fire
// set, at second granularity.
type cronRule struct {
	sched cron.Schedule
}

func (r cronRule) Excludes(t time.Time) bool {
	at := t.Truncate(time.Second)
	return r.sched.Next(at.Add(-time.Second)).Equal(at)
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
