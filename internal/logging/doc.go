// Package logging constructs the application's slog loggers and provides the
// standardized attribute keys used across the pipeline (component, job_id,
// stage, correlation_id). Handlers support a human-readable console format and
// a machine-readable JSON format; context helpers derive attributes from the
// request/job context so every log line carries consistent identifiers.
package logging
