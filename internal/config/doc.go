// Package config loads, validates, and normalizes the mediabrief TOML
// configuration. Paths are tilde-expanded, defaults fill unset fields, and
// Validate catches unusable values before the daemon starts.
package config
