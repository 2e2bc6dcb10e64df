// Package timers runs registered timers: calendar timers driven by the
// schedule-expression engine, and plain interval timers.
//
// # Registration
//
// Timers are registered under a logical name (e.g. "backup:nightly"). Names
// are stable and human readable so a timer can be replaced (upserted) and
// removed deterministically. A calendar registration carries the seven raw
// schedule fields plus an optional start/end window and timezone; it is
// parsed eagerly, so a bad expression is rejected at registration time, not
// at first fire.
//
// # Execution
//
// Fires are queued to a worker pool with a per-run timeout. A catch-up rate
// limiter bounds how quickly overdue fires are released when the host
// resumes after a suspend. Each run is appended to a bounded history ring
// and, when storage is configured, to the persistent fire log.
//
// # Lifecycle
//
// The Service can be started and stopped at runtime (e.g. on config hot
// reload). Registering timers while stopped is supported: definitions are
// stored and armed on the next start. Registrations are persisted through
// the storage layer and can be re-armed after a restart via Restore.
package timers
