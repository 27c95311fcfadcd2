package stream_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-attach/api"
	"github.com/momentics/hioload-attach/control"
	"github.com/momentics/hioload-attach/fake"
	"github.com/momentics/hioload-attach/protocol"
	"github.com/momentics/hioload-attach/stream"
)

const quantum = time.Millisecond

func encode(payloads ...[]byte) []byte {
	var wire []byte
	for i, p := range payloads {
		tag := protocol.Stdout
		if i%2 == 1 {
			tag = protocol.Stderr
		}
		wire = protocol.AppendFrame(wire, tag, p)
	}
	return wire
}

func open(h *fake.Handle, pollers *[]*fake.Poller, extra ...stream.Option) []stream.Option {
	return append([]stream.Option{
		stream.WithPoller(fake.Factory(h, pollers)),
		stream.WithPollQuantum(quantum),
	}, extra...)
}

func TestStreamHello(t *testing.T) {
	h := fake.NewHandle().Feed([]byte("\x01\x00\x00\x00\x00\x00\x00\x05hello")).Hangup()
	var pollers []*fake.Poller

	chunks, err := stream.Collect(stream.Stream(h, time.Second, open(h, &pollers)...))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("hello"), chunks[0])

	require.Len(t, pollers, 1)
	assert.Equal(t, 1, pollers[0].Closes())
	assert.Equal(t, 1, h.Closes())
}

func randomPayloads(rng *rand.Rand, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		p := make([]byte, rng.Intn(300))
		rng.Read(p)
		out[i] = p
	}
	out[n/2] = []byte{} // zero-length frames still yield a chunk
	return out
}

func TestStreamReassemblesArbitraryChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, tc := range []struct {
		name    string
		chunk   int
		stalls  bool
		maxRead int
	}{
		{name: "single chunk", chunk: 1 << 20},
		{name: "byte at a time", chunk: 1},
		{name: "byte at a time with stalls", chunk: 1, stalls: true},
		{name: "odd chunks with stalls", chunk: 7, stalls: true},
		{name: "short reads", chunk: 1 << 20, maxRead: 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			payloads := randomPayloads(rng, 12)
			wire := encode(payloads...)

			h := fake.NewHandle().LimitRead(tc.maxRead)
			for len(wire) > 0 {
				n := min(tc.chunk, len(wire))
				if tc.stalls && rng.Intn(16) == 0 {
					h.Stall(1 + rng.Intn(3))
				}
				h.Feed(wire[:n])
				wire = wire[n:]
			}
			h.Hangup()

			var pollers []*fake.Poller
			got, err := stream.Collect(stream.Stream(h, 10*time.Second, open(h, &pollers)...))
			require.NoError(t, err)
			require.Len(t, got, len(payloads))
			for i := range payloads {
				assert.Equal(t, payloads[i], got[i], "frame %d", i)
			}
			assert.NotNil(t, got[len(payloads)/2])
			assert.Equal(t, 1, h.Closes())
		})
	}
}

func TestStreamGracefulEndAtFrameBoundary(t *testing.T) {
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	h := fake.NewHandle().FeedChunked(encode(payloads...), 5).Hangup()
	var pollers []*fake.Poller

	var got [][]byte
	for chunk, err := range stream.Stream(h, time.Second, open(h, &pollers)...) {
		require.NoError(t, err)
		got = append(got, chunk)
	}
	assert.Equal(t, payloads, got)
	assert.False(t, pollers[0].Registered())
}

func TestStreamTruncatedPayload(t *testing.T) {
	wire := encode([]byte("first"), []byte("second"))
	hdr := protocol.EncodeHeader(protocol.Stdout, 10)
	wire = append(wire, hdr[:]...)
	wire = append(wire, "abc"...)

	h := fake.NewHandle().Feed(wire).Hangup()
	var pollers []*fake.Poller

	got, err := stream.Collect(stream.Stream(h, time.Second, open(h, &pollers)...))
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrTruncatedFrame)
	assert.NotErrorIs(t, err, api.ErrStreamClosed)
	assert.Equal(t, api.ErrCodeTruncated, api.CodeOf(err))
	assert.Equal(t, [][]byte{[]byte("first"), []byte("second")}, got)
	assert.Equal(t, 1, pollers[0].Closes())
	assert.Equal(t, 1, h.Closes())
}

func TestStreamTruncatedHeader(t *testing.T) {
	wire := encode([]byte("ok"))
	wire = append(wire, 0x01, 0x00, 0x00)
	h := fake.NewHandle().Feed(wire).Hangup()

	got, err := stream.Collect(stream.Stream(h, time.Second, open(h, nil)...))
	assert.ErrorIs(t, err, api.ErrTruncatedFrame)
	assert.Equal(t, [][]byte{[]byte("ok")}, got)
}

func TestStreamTimeout(t *testing.T) {
	const timeout = 80 * time.Millisecond
	q := 10 * time.Millisecond
	h := fake.NewHandle()
	var pollers []*fake.Poller

	start := time.Now()
	got, err := stream.Collect(stream.Stream(h, timeout,
		stream.WithPoller(fake.Factory(h, &pollers)),
		stream.WithPollQuantum(q),
	))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Empty(t, got)
	assert.ErrorIs(t, err, api.ErrOperationTimeout)
	assert.Equal(t, api.ErrCodeTimeout, api.CodeOf(err))
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+q+50*time.Millisecond)
	assert.Equal(t, 1, pollers[0].Closes())
	assert.Equal(t, 1, h.Closes())
}

func TestStreamDeadlineSpansFrames(t *testing.T) {
	// Each frame arrives well within the timeout, but the session as a whole does not.
	h := fake.NewHandle().
		Feed(encode([]byte("a"))).
		Stall(20).
		Feed(encode([]byte("b"))).
		Stall(20).
		Feed(encode([]byte("c"))).
		Hangup()

	got, err := stream.Collect(stream.Stream(h, 150*time.Millisecond,
		stream.WithPoller(fake.Factory(h, nil)),
		stream.WithPollQuantum(5*time.Millisecond),
	))
	assert.ErrorIs(t, err, api.ErrOperationTimeout)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)
}

func TestStreamAbandonReleasesResources(t *testing.T) {
	h := fake.NewHandle().Feed(encode([]byte("1"), []byte("2"), []byte("3"))).Hangup()
	var pollers []*fake.Poller

	pulled := 0
	for chunk, err := range stream.Stream(h, time.Second, open(h, &pollers)...) {
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), chunk)
		pulled++
		break
	}
	assert.Equal(t, 1, pulled)
	require.Len(t, pollers, 1)
	assert.False(t, pollers[0].Registered())
	assert.Equal(t, 1, pollers[0].Closes())
	assert.Equal(t, 1, h.Closes())
}

func TestStreamNotRestartable(t *testing.T) {
	h := fake.NewHandle().Feed(encode([]byte("x"))).Hangup()
	seq := stream.Stream(h, time.Second, open(h, nil)...)

	_, err := stream.Collect(seq)
	require.NoError(t, err)

	_, err = stream.Collect(seq)
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
	assert.Equal(t, 1, h.Closes())
}

func TestStreamContextCancel(t *testing.T) {
	h := fake.NewHandle()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := stream.Collect(stream.StreamContext(ctx, h, time.Minute, open(h, nil)...))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, api.ErrOperationTimeout)
	assert.Equal(t, 1, h.Closes())
}

func TestStreamMaxFrameSize(t *testing.T) {
	h := fake.NewHandle().Feed(encode([]byte("small"), make([]byte, 100))).Hangup()
	mr := control.NewMetricsRegistry()

	got, err := stream.Collect(stream.Stream(h, time.Second, open(h, nil,
		stream.WithMaxFrameSize(64), stream.WithMetrics(mr))...))
	assert.ErrorIs(t, err, api.ErrFrameTooLarge)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(1), mr.Counter(control.MetricTooLarge))
	assert.Equal(t, 1, h.Closes())
}

func TestStreamReadErrorSurfaces(t *testing.T) {
	boom := errors.New("boom")
	h := fake.NewHandle().Feed(encode([]byte("a"))).Fail(boom)

	got, err := stream.Collect(stream.Stream(h, time.Second, open(h, nil)...))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, h.Closes())
}

func TestFramesKeepsChannelTag(t *testing.T) {
	h := fake.NewHandle().Feed(encode([]byte("out"), []byte("err"))).Hangup()

	var frames []protocol.Frame
	for f, err := range stream.Frames(context.Background(), h, time.Second, open(h, nil)...) {
		require.NoError(t, err)
		frames = append(frames, f)
	}
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Stdout, frames[0].Stream)
	assert.Equal(t, protocol.Stderr, frames[1].Stream)
	assert.Equal(t, []byte("err"), frames[1].Payload)
}

func TestSessionNext(t *testing.T) {
	h := fake.NewHandle().Feed(encode([]byte("a"), []byte("b"))).Hangup()
	mr := control.NewMetricsRegistry()

	s, err := stream.Open(h, time.Second, open(h, nil, stream.WithMetrics(mr))...)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Second), s.Deadline(), 100*time.Millisecond)

	chunk, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), chunk)
	chunk, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), chunk)

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, s.Frames())

	require.NoError(t, s.Close())
	assert.Equal(t, 1, h.Closes())
	assert.Equal(t, int64(2), mr.Counter(control.MetricFrames))
	assert.Equal(t, int64(2), mr.Counter(control.MetricBytes))
	assert.Equal(t, int64(1), mr.Counter(control.MetricSessionsOpened))
	assert.Equal(t, int64(1), mr.Counter(control.MetricSessionsClosed))
}

func TestSessionCloseWithoutReading(t *testing.T) {
	h := fake.NewHandle().Feed(encode([]byte("unread")))
	var pollers []*fake.Poller

	s, err := stream.Open(h, time.Second, open(h, &pollers)...)
	require.NoError(t, err)
	require.Len(t, pollers, 1)
	assert.Equal(t, 0, h.Closes())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, pollers[0].Closes())
	assert.Equal(t, 1, h.Closes())
	assert.Zero(t, h.Reads())
}

func TestOpenReleasesHandleOnPollerFailure(t *testing.T) {
	h := fake.NewHandle()
	_, err := stream.Open(h, time.Second, stream.WithPoller(func() (api.Poller, error) {
		return nil, api.ErrNotSupported
	}))
	assert.ErrorIs(t, err, api.ErrNotSupported)
	assert.Equal(t, 1, h.Closes())
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	const sessions = 8
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		go func(i int) {
			want := []byte{byte(i)}
			h := fake.NewHandle().FeedChunked(encode(want, want), 1).Hangup()
			got, err := stream.Collect(stream.Stream(h, 5*time.Second, open(h, nil)...))
			if err == nil && (len(got) != 2 || got[1][0] != byte(i)) {
				err = errors.New("mixed up payloads")
			}
			errs <- err
		}(i)
	}
	for i := 0; i < sessions; i++ {
		assert.NoError(t, <-errs)
	}
}
