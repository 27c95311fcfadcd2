// File: docker/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package docker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/go-connections/sockets"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/control"
	"github.com/momentics/hioload-attach/protocol"
	"github.com/momentics/hioload-attach/stream"
	"github.com/momentics/hioload-attach/transport"
)

// Client talks to one Docker daemon.
type Client struct {
	proto   string
	addr    string
	baseURL string
	http    *http.Client
	cfg     control.Config
	log     zerolog.Logger
	opts    []stream.Option
}

// AttachOptions selects which container streams to attach to.
type AttachOptions struct {
	Stdout bool
	Stderr bool
}

// New builds a client for cfg.DockerHost. Extra stream options are applied
// to every session the client starts.
func New(cfg control.Config, log zerolog.Logger, opts ...stream.Option) (*Client, error) {
	proto, addr, err := ParseHost(cfg.DockerHost)
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{}
	if err := sockets.ConfigureTransport(tr, proto, addr); err != nil {
		return nil, fmt.Errorf("configure transport for %s: %w", cfg.DockerHost, err)
	}
	base := "http://" + addr
	if proto == "unix" {
		base = "http://docker"
	}
	c := &Client{
		proto:   proto,
		addr:    addr,
		baseURL: base,
		http:    &http.Client{Transport: tr},
		cfg:     cfg,
		log:     log.With().Str("docker_host", cfg.DockerHost).Logger(),
	}
	c.opts = append([]stream.Option{stream.FromConfig(cfg), stream.WithLogger(c.log)}, opts...)
	return c, nil
}

// ParseHost splits a DOCKER_HOST style address into network and address.
// A bare path is taken as a unix socket.
func ParseHost(host string) (proto, addr string, err error) {
	if host == "" {
		host = control.DefaultDockerHost
	}
	if strings.HasPrefix(host, "/") {
		return "unix", host, nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", "", fmt.Errorf("parse docker host %q: %w", host, err)
	}
	switch u.Scheme {
	case "unix":
		if u.Path == "" {
			return "", "", api.NewError(api.ErrCodeInvalidArgument, "unix docker host without path").WithContext("host", host)
		}
		return "unix", u.Path, nil
	case "tcp", "http":
		if u.Host == "" {
			return "", "", api.NewError(api.ErrCodeInvalidArgument, "tcp docker host without address").WithContext("host", host)
		}
		return "tcp", u.Host, nil
	default:
		return "", "", api.NewError(api.ErrCodeNotSupported, "unsupported docker host scheme").WithContext("scheme", u.Scheme)
	}
}

// Ping reports whether the daemon answers /_ping.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return api.NewError(api.ErrCodeInternal, "ping failed").
			WithContext("status", resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(body)))
	}
	return nil
}

// Available is Ping reduced to a boolean.
func (c *Client) Available(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// Attach opens a raw attach stream to container id. Old output is never
// requested (logs=0): only output produced after attaching is delivered.
// The returned handle is non-blocking and owns the connection.
func (c *Client) Attach(ctx context.Context, id string, opts AttachOptions) (api.Handle, error) {
	if id == "" {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "empty container id")
	}
	if !opts.Stdout && !opts.Stderr {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "attach needs stdout or stderr")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, c.proto, c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", c.proto, c.addr, err)
	}
	h, err := c.upgrade(ctx, conn, id, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.log.Debug().Str("container", id).Bool("stdout", opts.Stdout).Bool("stderr", opts.Stderr).Msg("attached")
	return h, nil
}

func (c *Client) upgrade(ctx context.Context, conn net.Conn, id string, opts AttachOptions) (api.Handle, error) {
	q := url.Values{}
	q.Set("stream", "1")
	q.Set("stdout", boolParam(opts.Stdout))
	q.Set("stderr", boolParam(opts.Stderr))
	q.Set("logs", "0")
	target := c.baseURL + "/containers/" + url.PathEscape(id) + "/attach?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "tcp")
	req.Header.Set("Content-Type", "text/plain")

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("write attach request: %w", err)
	}
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("read attach response: %w", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, api.NewError(api.ErrCodeInternal, "attach refused").
			WithContext("container", id).
			WithContext("status", resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(body)))
	}
	_ = conn.SetDeadline(time.Time{})

	rest, _ := br.Peek(br.Buffered())
	h, err := transport.FromConn(conn, rest)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// StreamLogs attaches to container id and streams its output for at most
// timeout. Attach failures are yielded as the sequence's only element.
func (c *Client) StreamLogs(ctx context.Context, id string, opts AttachOptions, timeout time.Duration) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for f, err := range c.StreamFrames(ctx, id, opts, timeout) {
			if !yield(f.Payload, err) || err != nil {
				return
			}
		}
	}
}

// StreamFrames is StreamLogs keeping the channel of every frame. The
// deadline is fixed when StreamFrames is called and bounds the attach
// handshake as well as the stream; extra options apply to this session only.
func (c *Client) StreamFrames(ctx context.Context, id string, opts AttachOptions, timeout time.Duration, extra ...stream.Option) iter.Seq2[protocol.Frame, error] {
	deadline := time.Now().Add(timeout)
	return func(yield func(protocol.Frame, error) bool) {
		h, err := c.attachBy(ctx, id, opts, deadline)
		if err != nil {
			yield(protocol.Frame{}, err)
			return
		}
		sopts := append(append([]stream.Option(nil), c.opts...), extra...)
		for f, err := range stream.Frames(ctx, h, time.Until(deadline), sopts...) {
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// attachBy runs Attach under deadline and reports running out of time as
// ErrOperationTimeout.
func (c *Client) attachBy(ctx context.Context, id string, opts AttachOptions, deadline time.Time) (api.Handle, error) {
	actx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	h, err := c.Attach(actx, id, opts)
	if err != nil && ctx.Err() == nil && (errors.Is(actx.Err(), context.DeadlineExceeded) || !time.Now().Before(deadline)) {
		return nil, api.Wrap(api.ErrCodeTimeout, api.ErrOperationTimeout).
			WithContext("container", id).
			WithContext("phase", "attach").
			WithContext("cause", err.Error())
	}
	return h, err
}

// AttachOptionsFromConfig selects streams as configured.
func AttachOptionsFromConfig(cfg control.Config) AttachOptions {
	return AttachOptions{Stdout: cfg.Stdout, Stderr: cfg.Stderr}
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
