package control_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/control"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{control.EnvDockerHost, control.EnvTimeout, control.EnvPollQuantum, control.EnvMaxFrameSize} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attach.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := control.Load("")
	require.NoError(t, err)
	assert.Equal(t, control.DefaultConfig(), cfg)
	assert.Equal(t, 10*time.Millisecond, cfg.PollQuantum)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, `
docker_host = "tcp://127.0.0.1:2375"
timeout = "2s"
poll_quantum = "5ms"
max_frame_size = 4096
stderr = false
`)
	clearEnv(t)
	t.Setenv(control.EnvTimeout, "0.5")

	cfg, err := control.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:2375", cfg.DockerHost)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 5*time.Millisecond, cfg.PollQuantum)
	assert.Equal(t, uint32(4096), cfg.MaxFrameSize)
	assert.True(t, cfg.Stdout)
	assert.False(t, cfg.Stderr)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `bogus = 1`)
	_, err := control.Load(path)
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
}

func TestLoadRejectsBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(control.EnvPollQuantum, "soon")
	_, err := control.Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.Stdout, cfg.Stderr = false, false
	assert.Error(t, cfg.Validate())

	cfg = control.DefaultConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestMetricsRegistryCounters(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Add(control.MetricFrames, 2)
	mr.Add(control.MetricFrames, 3)
	assert.Equal(t, int64(5), mr.Counter(control.MetricFrames))
	assert.Equal(t, int64(5), mr.GetSnapshot()[control.MetricFrames])
	assert.False(t, mr.Updated().IsZero())

	var nilRegistry *control.MetricsRegistry
	assert.NotPanics(t, func() { nilRegistry.Add(control.MetricFrames, 1) })
}
