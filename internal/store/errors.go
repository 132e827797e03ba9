package store

import "errors"

// ErrJobFinalized indicates an update was attempted against a job whose
// status already reached completed or failed. Terminal status is written at
// most once; later writes are rejected rather than silently applied.
var ErrJobFinalized = errors.New("job already finalized")
