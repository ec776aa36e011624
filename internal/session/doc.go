// Package session owns the model handle and coordinates access to it. Files
// are split by concern:
//
//   - session.go: Session type, state machine, constructor and Close.
//   - config.go: Config and package defaults.
//   - errors.go: error types and helpers (IsInitialization, IsInvalidInput, IsTooBusy).
//   - ensure.go: EnsureReady and the shared initialization flight.
//   - admission.go: single in-flight generation with a bounded wait queue.
//   - run.go: Run and RunBytes, the inference entry points.
//   - status_report.go: Snapshot and Status for /status.
//   - events.go, eventpub_memory.go: lifecycle events.
//
// The session is created idle. The first EnsureReady or Run starts one
// initialization that every concurrent caller joins. A ready session stays
// ready for the life of the process; a failed one reports the failure until
// the next explicit EnsureReady.
package session
