// Package main hosts the mediabrief CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: file uploads, job status and progress
// streaming, history and statistics listings, report downloads, and
// configuration scaffolding. It centralizes configuration resolution and API
// endpoint discovery so subcommands can focus on user experience instead of
// wiring.
package main
