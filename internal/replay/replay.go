// Package replay implements an offline agent that feeds a recorded
// transcript into a session and logs every outbound control message.
//
// The input is plain text, one transcript line per line. A line may carry a
// "user:" or "agent:" prefix to set the speaker; unprefixed lines are user
// speech. Blank lines and lines starting with "#" are skipped.
package replay

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/charterline/pkg/realtime"
)

// Compile-time assertion that Agent satisfies realtime.Transport.
var _ realtime.Transport = (*Agent)(nil)

// Option is a functional option for configuring an [Agent].
type Option func(*Agent)

// WithPace waits d before emitting each line. Zero emits as fast as the
// consumer reads.
func WithPace(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.pace = d
		}
	}
}

// WithLogger sets the logger for outbound messages. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.out.Logger = l
		}
	}
}

// WithClock sets the clock used for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// Agent replays transcript lines from a reader.
type Agent struct {
	out         realtime.LogTransport
	pace        time.Duration
	now         func() time.Time
	transcripts chan realtime.Transcript
	sent        atomic.Int64

	closer    io.Closer
	cancel    context.CancelFunc
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// Open starts replaying r. The transcript channel is closed when r is
// exhausted, ctx is cancelled or [Agent.Close] is called. If r is also an
// [io.Closer] it is closed by [Agent.Close].
func Open(ctx context.Context, r io.Reader, opts ...Option) *Agent {
	a := &Agent{
		out:         realtime.LogTransport{Logger: slog.Default()},
		now:         time.Now,
		transcripts: make(chan realtime.Transcript),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if c, ok := r.(io.Closer); ok {
		a.closer = c
	}
	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx, r)
	return a
}

// Send logs msg and counts it. It fails with [realtime.ErrClosed] after Close.
func (a *Agent) Send(msg []byte) error {
	if a.closed.Load() {
		return realtime.ErrClosed
	}
	a.sent.Add(1)
	return a.out.Send(msg)
}

// Sent returns how many messages have been accepted by Send.
func (a *Agent) Sent() int { return int(a.sent.Load()) }

// Transcripts returns the replayed lines.
func (a *Agent) Transcripts() <-chan realtime.Transcript { return a.transcripts }

// Done is closed once the replay goroutine has exited.
func (a *Agent) Done() <-chan struct{} { return a.done }

// Close stops the replay and waits for it to exit.
func (a *Agent) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.cancel()
		if a.closer != nil {
			err = a.closer.Close()
		}
	})
	<-a.done
	return err
}

func (a *Agent) run(ctx context.Context, r io.Reader) {
	defer close(a.done)
	defer close(a.transcripts)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		t, ok := ParseLine(sc.Text())
		if !ok {
			continue
		}
		if a.pace > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.pace):
			}
		}
		t.Timestamp = a.now()
		select {
		case <-ctx.Done():
			return
		case a.transcripts <- t:
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		a.out.Logger.Warn("replay: read failed", "err", err)
	}
}

// ParseLine turns one input line into a transcript. It reports false for
// blank lines and comments.
func ParseLine(line string) (realtime.Transcript, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return realtime.Transcript{}, false
	}
	t := realtime.Transcript{Speaker: realtime.SpeakerUser, Text: line}
	if head, rest, ok := strings.Cut(line, ":"); ok {
		switch strings.ToLower(strings.TrimSpace(head)) {
		case "user":
			t.Text = strings.TrimSpace(rest)
		case "agent":
			t.Speaker = realtime.SpeakerAgent
			t.Text = strings.TrimSpace(rest)
		}
	}
	if t.Text == "" {
		return realtime.Transcript{}, false
	}
	return t, true
}
