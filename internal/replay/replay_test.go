package replay_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/charterline/internal/replay"
	"github.com/MrWong99/charterline/pkg/realtime"
)

func TestParseLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		ok      bool
		speaker realtime.Speaker
		text    string
	}{
		{"Acme Launch", true, realtime.SpeakerUser, "Acme Launch"},
		{"user: go back", true, realtime.SpeakerUser, "go back"},
		{"  Agent:  What is the sponsor?", true, realtime.SpeakerAgent, "What is the sponsor?"},
		{"note: keep this", true, realtime.SpeakerUser, "note: keep this"},
		{"", false, "", ""},
		{"   ", false, "", ""},
		{"# a comment", false, "", ""},
		{"agent:", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := replay.ParseLine(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Speaker != tt.speaker || got.Text != tt.text {
				t.Errorf("got %q/%q, want %q/%q", got.Speaker, got.Text, tt.speaker, tt.text)
			}
		})
	}
}

func collect(t *testing.T, a *replay.Agent) []realtime.Transcript {
	t.Helper()
	var out []realtime.Transcript
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tr, ok := <-a.Transcripts():
			if !ok {
				return out
			}
			out = append(out, tr)
		case <-timeout:
			t.Fatal("timed out reading transcripts")
		}
	}
}

func TestAgent_ReplaysInOrder(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	in := "# charter walkthrough\nAcme Launch\n\nagent: Who is the sponsor?\nuser: Jane Doe\n"
	a := replay.Open(context.Background(), strings.NewReader(in),
		replay.WithClock(func() time.Time { return fixed }),
		replay.WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer a.Close()

	got := collect(t, a)
	want := []string{"Acme Launch", "Who is the sponsor?", "Jane Doe"}
	if len(got) != len(want) {
		t.Fatalf("got %d transcripts, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("[%d] text = %q, want %q", i, got[i].Text, w)
		}
		if !got[i].Timestamp.Equal(fixed) {
			t.Errorf("[%d] timestamp = %v", i, got[i].Timestamp)
		}
	}
	if got[1].Speaker != realtime.SpeakerAgent {
		t.Errorf("speaker = %q, want agent", got[1].Speaker)
	}
}

func TestAgent_SendCountsUntilClosed(t *testing.T) {
	t.Parallel()
	a := replay.Open(context.Background(), strings.NewReader(""),
		replay.WithLogger(slog.New(slog.DiscardHandler)))

	if err := a.Send([]byte(`{"type":"response.create"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if a.Sent() != 1 {
		t.Errorf("Sent() = %d, want 1", a.Sent())
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Send([]byte("{}")); !errors.Is(err, realtime.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

type trackedReader struct {
	io.Reader
	closed bool
}

func (r *trackedReader) Close() error { r.closed = true; return nil }

func TestAgent_CloseStopsPacedReplay(t *testing.T) {
	t.Parallel()
	src := &trackedReader{Reader: strings.NewReader("one\ntwo\nthree\n")}
	a := replay.Open(context.Background(), src,
		replay.WithPace(time.Hour),
		replay.WithLogger(slog.New(slog.DiscardHandler)))

	done := make(chan error, 1)
	go func() { done <- a.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	if !src.closed {
		t.Error("underlying reader should be closed")
	}
	if _, ok := <-a.Transcripts(); ok {
		t.Error("transcript channel should be closed")
	}
}

func TestAgent_ContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	a := replay.Open(ctx, strings.NewReader("one\ntwo\n"),
		replay.WithLogger(slog.New(slog.DiscardHandler)))
	cancel()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not stop on cancel")
	}
}
