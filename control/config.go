// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed configuration: defaults, TOML file, then environment overrides.

package control

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/momentics/hioload-attach/api"
)

const (
	EnvDockerHost   = "DOCKER_HOST"
	EnvTimeout      = "HIOLOAD_ATTACH_TIMEOUT"
	EnvPollQuantum  = "HIOLOAD_POLL_QUANTUM"
	EnvMaxFrameSize = "HIOLOAD_MAX_FRAME"
)

// DefaultDockerHost is the daemon socket used when nothing else is configured.
const DefaultDockerHost = "unix:///var/run/docker.sock"

// Config holds the settings for attach and stream sessions.
type Config struct {
	DockerHost string `toml:"docker_host"`

	// Timeout bounds one whole streaming session.
	Timeout time.Duration `toml:"timeout"`

	// PollQuantum is the longest single readiness wait; deadline checks
	// happen at least this often.
	PollQuantum time.Duration `toml:"poll_quantum"`

	// MaxFrameSize rejects larger declared payloads. Zero disables the check.
	MaxFrameSize uint32 `toml:"max_frame_size"`

	Stdout bool `toml:"stdout"`
	Stderr bool `toml:"stderr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DockerHost:  DefaultDockerHost,
		Timeout:     10 * time.Second,
		PollQuantum: 10 * time.Millisecond,
		Stdout:      true,
		Stderr:      true,
	}
}

// Load reads path (if non-empty) over the defaults and applies env overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, api.NewError(api.ErrCodeInvalidArgument, "unknown config keys").
				WithContext("file", path).
				WithContext("keys", strings.Join(keys, ","))
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "timeout must be positive").WithContext("timeout", c.Timeout)
	}
	if c.PollQuantum <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "poll quantum must be positive").WithContext("poll_quantum", c.PollQuantum)
	}
	if !c.Stdout && !c.Stderr {
		return api.NewError(api.ErrCodeInvalidArgument, "at least one of stdout/stderr must be attached")
	}
	if c.DockerHost == "" {
		return api.NewError(api.ErrCodeInvalidArgument, "docker host is empty")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvDockerHost)); v != "" {
		cfg.DockerHost = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvPollQuantum)); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollQuantum, err)
		}
		cfg.PollQuantum = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxFrameSize)); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxFrameSize, err)
		}
		cfg.MaxFrameSize = uint32(n)
	}
	return nil
}

// parseDuration accepts Go durations ("1.5s") and bare seconds ("1.5").
func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}
