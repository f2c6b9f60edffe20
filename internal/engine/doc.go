// Package engine is the scheduling engine capability: it owns cron
// evaluation and fire dispatch, adapted over robfig/cron with a bounded
// worker pool.
//
// The registration core consumes it through four operations: existence
// check, calendar install, cron schedule install, immediate fire.
// ScheduleCron is atomic check-and-register under the engine lock, which
// closes the check-then-act window for a single process. Multiple processes
// sharing one engine are NOT coordinated here; deployments must keep a
// single registration writer.
package engine
