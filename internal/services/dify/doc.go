// Package dify talks to the external classification workflow service. It
// uploads the deduplicated artifact, runs the workflow in streaming mode,
// and turns failures into classified, actionable errors.
package dify
