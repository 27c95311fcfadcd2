// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration and runtime metrics for attach-stream sessions.
//
// Provides:
//   - Typed configuration loaded from TOML with environment overrides
//   - A concurrency-safe metrics registry shared by independent sessions
package control
