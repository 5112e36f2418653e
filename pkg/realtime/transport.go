package realtime

import (
	"errors"
	"log/slog"
)

// ErrClosed is returned by transports that have been shut down.
var ErrClosed = errors.New("realtime: transport closed")

// Transport carries outbound control messages to the spoken agent.
//
// Send must not block for longer than a single write; the session controller
// calls it synchronously while processing a transcript and treats it as
// fire-and-forget. Implementations must be safe for concurrent use.
type Transport interface {
	Send(msg []byte) error
}

// TransportFunc adapts a function to the [Transport] interface.
type TransportFunc func(msg []byte) error

// Send calls f(msg).
func (f TransportFunc) Send(msg []byte) error { return f(msg) }

// LogTransport is a [Transport] that writes every message to a logger at
// debug level. Used by replay mode where no agent is connected.
type LogTransport struct {
	Logger *slog.Logger
}

// Send implements [Transport].
func (t LogTransport) Send(msg []byte) error {
	l := t.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Debug("realtime: outbound message", "payload", string(msg))
	return nil
}
