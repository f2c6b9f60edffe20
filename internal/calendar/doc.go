// Package calendar turns stored calendar rows into exclusion predicates and
// resolves calendar references with tenant-then-global fallback.
//
// An exclusion calendar marks instants at which a trigger must not fire even
// though its cron expression matches. Calendars chain through parents; the
// composed predicate excludes an instant when any calendar on the chain does.
package calendar
