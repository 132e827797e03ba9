// Package services defines shared utilities consumed by the pipeline stages
// and the external workflow integration.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can branch on
//     failure category with errors.Is instead of inspecting message text.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
