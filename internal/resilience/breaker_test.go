package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/charterline/pkg/realtime"
)

var errTest = errors.New("test error")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(maxFailures int) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
	b := NewBreaker(BreakerConfig{
		Name:        "test",
		MaxFailures: maxFailures,
		CoolOff:     time.Second,
		Now:         c.now,
		Logger:      slog.New(slog.DiscardHandler),
	})
	return b, c
}

func TestNewBreaker_Defaults(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{})
	if b.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", b.maxFailures)
	}
	if b.coolOff != 10*time.Second {
		t.Errorf("coolOff = %v, want 10s", b.coolOff)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(3)
	for range 2 {
		_ = b.Do(func() error { return errTest })
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v after 2 failures, want closed", b.State())
	}
	if err := b.Do(func() error { return errTest }); !errors.Is(err, errTest) {
		t.Fatalf("third call should return fn error, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker must reject without calling fn; err=%v called=%v", err, called)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(2)
	_ = b.Do(func() error { return errTest })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errTest })
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		probe error
		want  State
	}{
		{"probe succeeds", nil, StateClosed},
		{"probe fails", errTest, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, c := newTestBreaker(1)
			_ = b.Do(func() error { return errTest })
			c.advance(time.Second)
			if b.State() != StateHalfOpen {
				t.Fatalf("state = %v, want half-open", b.State())
			}
			_ = b.Do(func() error { return tt.probe })
			if b.State() != tt.want {
				t.Errorf("state = %v, want %v", b.State(), tt.want)
			}
		})
	}
}

func TestBreaker_SingleProbe(t *testing.T) {
	t.Parallel()
	b, c := newTestBreaker(1)
	_ = b.Do(func() error { return errTest })
	c.advance(time.Second)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Do(func() error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("concurrent call during probe = %v, want ErrCircuitOpen", err)
	}
	close(release)
	<-done
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(1)
	_ = b.Do(func() error { return errTest })
	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestGuardTransport(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(2)
	sends := 0
	inner := realtime.TransportFunc(func([]byte) error {
		sends++
		return errTest
	})
	g := GuardTransport(inner, b)

	for range 2 {
		if err := g.Send([]byte("{}")); !errors.Is(err, errTest) {
			t.Fatalf("Send = %v, want errTest", err)
		}
	}
	if err := g.Send([]byte("{}")); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Send = %v, want ErrCircuitOpen", err)
	}
	if sends != 2 {
		t.Errorf("inner sends = %d, want 2", sends)
	}
}
