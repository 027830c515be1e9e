// Package worker runs the generation session state machine behind a single
// command queue. It is structured into small files by concern:
//
//   - worker.go: Worker actor, Config defaults, command dispatch, Status.
//   - loader.go: Loader, one-time tokenizer/model acquisition and warm-up.
//   - progress.go: per-asset download progress tracking.
//   - session.go: Session and StreamState, one active generation at a time.
//   - status.go: forward-only lifecycle status.
//   - errors.go: error taxonomy (Is* predicates, Classify).
//   - events.go, eventpub_memory.go: EventPublisher implementations.
//   - metrics.go, tracing.go: prometheus collectors and otel spans.
//
// Controllers talk to a Worker only through Send and the configured
// EventPublisher.
package worker
