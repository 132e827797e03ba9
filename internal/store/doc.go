// Package store manages durable job and upload state backed by SQLite.
//
// The pipeline orchestrator is the only writer for a given job id; the
// progress channel and HTTP handlers are read-only observers. Progress is
// clamped non-decreasing while a job is processing, and a terminal status
// (completed or failed) is written at most once.
package store
