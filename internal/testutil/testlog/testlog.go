// Package testlog routes test output through the test logging profile.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-attach/internal/logging"
)

// Start configures the test profile once per binary and returns the shared
// logger tagged with the running test's name.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	log := logging.Logger().With().Str("test", t.Name()).Logger()
	log.Debug().Msg("start")
	return log
}
