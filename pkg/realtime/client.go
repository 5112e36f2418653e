package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Compile-time assertion that Client satisfies Transport.
var _ Transport = (*Client)(nil)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
	writeTimeout   = 5 * time.Second
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Transcript is one finished line of transcribed speech. The session
// controller only looks at Text; Speaker is informational because the agent's
// own speech loops back through the same channel as user speech.
type Transcript struct {
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithModel sets the realtime model appended to the dial URL.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the WebSocket endpoint. Primarily used in tests to
// point at a local server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithErrorHandler registers a callback for server error events.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Client) { c.onError = fn }
}

// ── Client ─────────────────────────────────────────────────────────────────────

// Client is a WebSocket connection to a realtime speech agent. It implements
// [Transport] for outbound control messages and decodes inbound transcript
// events onto [Client.Transcripts].
type Client struct {
	apiKey  string
	model   string
	baseURL string
	onError func(error)

	conn        *websocket.Conn
	transcripts chan Transcript

	mu     sync.Mutex
	errVal error
	closed bool

	// agentText accumulates response.audio_transcript.delta events until
	// response.audio_transcript.done is received.
	agentText string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Dial connects to the realtime endpoint and starts the receive loop.
func Dial(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		apiKey:      apiKey,
		model:       defaultModel,
		baseURL:     defaultBaseURL,
		transcripts: make(chan Transcript, 16),
	}
	for _, o := range opts {
		o(c)
	}

	wsURL := fmt.Sprintf("%s?model=%s", c.baseURL, c.model)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}
	conn.SetReadLimit(1 << 22)

	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.receiveLoop()
	return c, nil
}

// Send writes msg as a text frame.
func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("realtime: write: %w", err)
	}
	return nil
}

// Transcripts returns the channel of finished transcript lines. It is closed
// when the connection ends.
func (c *Client) Transcripts() <-chan Transcript { return c.transcripts }

// Err returns the error that ended the receive loop, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errVal
}

// Connected reports whether the client is still open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.errVal == nil
}

// Close terminates the connection. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}

// ── Inbound events ─────────────────────────────────────────────────────────────

type serverEvent struct {
	Type string `json:"type"`

	// response.audio_transcript.delta
	Delta string `json:"delta,omitempty"`

	// conversation.item.input_audio_transcription.completed and
	// response.audio_transcript.done
	Transcript string `json:"transcript,omitempty"`

	Error *serverErrorDetail `json:"error,omitempty"`
}

type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// receiveLoop reads events until the connection closes. It owns transcripts
// and closes the channel on exit.
func (c *Client) receiveLoop() {
	defer c.closeOnce.Do(func() { close(c.transcripts) })

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.setErr(err)
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		c.handleServerEvent(&evt)
	}
}

func (c *Client) handleServerEvent(evt *serverEvent) {
	switch evt.Type {
	case "response.audio_transcript.delta":
		c.mu.Lock()
		c.agentText += evt.Delta
		c.mu.Unlock()

	case "response.audio_transcript.done":
		c.mu.Lock()
		text := c.agentText
		c.agentText = ""
		c.mu.Unlock()
		if evt.Transcript != "" {
			text = evt.Transcript
		}
		c.emit(SpeakerAgent, text)

	case "conversation.item.input_audio_transcription.completed":
		c.emit(SpeakerUser, evt.Transcript)

	case "error":
		if c.onError == nil {
			return
		}
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		c.onError(fmt.Errorf("realtime: %s", msg))
	}
}

func (c *Client) emit(speaker Speaker, text string) {
	if text == "" {
		return
	}
	select {
	case c.transcripts <- Transcript{Speaker: speaker, Text: text, Timestamp: time.Now()}:
	case <-c.ctx.Done():
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errVal == nil {
		c.errVal = err
	}
}
