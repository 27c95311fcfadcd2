// File: cmd/attachlogs/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// attachlogs streams container output with a hard wall-clock bound.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/control"
	"github.com/momentics/hioload-attach/docker"
	"github.com/momentics/hioload-attach/internal/logging"
	"github.com/momentics/hioload-attach/protocol"
	"github.com/momentics/hioload-attach/stream"
)

var (
	configPath string
	dockerHost string
	timeout    time.Duration
	maxFrame   uint32
	stdoutOnly bool
	stderrOnly bool
)

var rootCmd = &cobra.Command{
	Use:           "attachlogs",
	Short:         "Stream container output with a deadline",
	Long:          `attachlogs attaches to a running container and reads its multiplexed output, giving up after a fixed wall-clock timeout.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the Docker daemon is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, log, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			return err
		}
		log.Info().Msg("docker daemon is available")
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs CONTAINER",
	Short: "Print container output until it closes or the timeout expires",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, log, err := setup()
		if err != nil {
			return err
		}
		mr := control.NewMetricsRegistry()
		frames := c.StreamFrames(cmd.Context(), args[0], docker.AttachOptionsFromConfig(cfg), cfg.Timeout,
			stream.WithLogger(log), stream.WithMetrics(mr))
		for f, err := range frames {
			if err != nil {
				return err
			}
			if err := writeFrame(cmd.OutOrStdout(), cmd.ErrOrStderr(), f); err != nil {
				return err
			}
		}
		log.Debug().
			Int64("frames", mr.Counter(control.MetricFrames)).
			Int64("bytes", mr.Counter(control.MetricBytes)).
			Msg("container output ended")
		return nil
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait CONTAINER PATTERN...",
	Short: "Wait until a line of container output matches a pattern",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns := make([]*regexp.Regexp, 0, len(args)-1)
		for _, p := range args[1:] {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("pattern %q: %w", p, err)
			}
			patterns = append(patterns, re)
		}
		c, cfg, _, err := setup()
		if err != nil {
			return err
		}
		seq := c.StreamLogs(cmd.Context(), args[0], docker.AttachOptionsFromConfig(cfg), cfg.Timeout)
		line, err := docker.WaitForLine(seq, patterns...)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
		return err
	},
}

func setup() (*docker.Client, control.Config, zerolog.Logger, error) {
	log := logging.ConfigureRuntime()
	cfg, err := control.Load(configPath)
	if err != nil {
		return nil, cfg, log, err
	}
	if dockerHost != "" {
		cfg.DockerHost = dockerHost
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if maxFrame > 0 {
		cfg.MaxFrameSize = maxFrame
	}
	switch {
	case stdoutOnly && !stderrOnly:
		cfg.Stdout, cfg.Stderr = true, false
	case stderrOnly && !stdoutOnly:
		cfg.Stdout, cfg.Stderr = false, true
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, log, err
	}
	c, err := docker.New(cfg, log)
	return c, cfg, log, err
}

func writeFrame(stdout, stderr io.Writer, f protocol.Frame) error {
	w := stdout
	if f.Stream == protocol.Stderr || f.Stream == protocol.SystemErr {
		w = stderr
	}
	_, err := w.Write(f.Payload)
	return err
}

// exitCode maps session failures to distinct process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, api.ErrOperationTimeout):
		return 3
	case errors.Is(err, api.ErrTruncatedFrame):
		return 4
	default:
		return 1
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "TOML config file")
	pf.StringVar(&dockerHost, "host", "", "Docker daemon address (default $DOCKER_HOST or "+control.DefaultDockerHost+")")
	pf.DurationVar(&timeout, "timeout", 0, "Total time to wait for output (default from config, 10s)")
	pf.Uint32Var(&maxFrame, "max-frame", 0, "Reject frames larger than this many bytes (0 = unlimited)")
	pf.BoolVar(&stdoutOnly, "stdout", false, "Attach to stdout only")
	pf.BoolVar(&stderrOnly, "stderr", false, "Attach to stderr only")

	rootCmd.AddCommand(pingCmd, logsCmd, waitCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}
