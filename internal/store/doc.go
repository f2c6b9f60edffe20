// Package store is the read side of the job definition and calendar data.
//
// The scheduler core never writes here during a pass; writes exist only for
// seeding. Two drivers are provided:
//   - "sqlite": SQLite database file (modernc.org/sqlite, WAL)
//   - "memory": in-process maps, used by tests and throwaway setups
package store
