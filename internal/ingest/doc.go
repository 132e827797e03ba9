// Package ingest parses tabular media-mention exports (CSV and XLSX),
// extracts the required columns, and deduplicates rows by their hit
// sentence before the batch is handed to the classification workflow.
package ingest
