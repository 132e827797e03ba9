// Package textutil provides text helpers shared across the pipeline.
//
// The primary use cases are:
//   - Normalizing dedupe keys (whitespace trim, line-ending unification)
//   - Incrementally decoding UTF-8 byte streams whose reads may split a
//     multi-byte sequence at any byte offset
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil
