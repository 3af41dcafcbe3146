// Package diag implements the binder's error sink: an append-only,
// concurrency-safe log of diagnostics with a severity, a stable code and the
// source location of the record that caused them.
//
// Stages report problems by returning Diagnostics instead of failing on the
// first one. The orchestrator appends them to a Sink and inspects the
// aggregate error state only at stage boundaries.
package diag
