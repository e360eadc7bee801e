// Package integration holds the domain model of a PIM sync run and the
// ports the sync engine talks to on the destination side.
//
// Key concepts:
//   - SyncRun: one execution of the engine with its counters and final status
//   - FieldWriter: applies one (entity, field, value) write idempotently
//   - SerializedWriter: serializes writes per destination entity
//   - SyncRunRepository: persists run history
//
// Events published during a run are defined in events.go.
package integration
