package storage

// Package storage persists timer state across restarts.
//
// It currently supports:
//   - Timer registrations (the raw schedule fields, bounds and timezone)
//   - A fire audit log (when each timer ran and how it went)
