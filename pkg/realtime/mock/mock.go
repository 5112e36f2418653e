// Package mock provides a recording test double for [realtime.Transport].
//
// Example:
//
//	tr := &mock.Transport{}
//	ctrl.Initialize(schema, tr, nil)
//	for _, m := range tr.Decoded() { ... }
package mock

import (
	"encoding/json"
	"sync"

	"github.com/MrWong99/charterline/pkg/realtime"
)

var _ realtime.Transport = (*Transport)(nil)

// Message is a decoded outbound message.
type Message struct {
	Type    string         `json:"type"`
	Session map[string]any `json:"session,omitempty"`
	Item    struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"item"`
}

// Text returns the text of the first content part of a conversation item.
func (m Message) Text() string {
	if len(m.Item.Content) == 0 {
		return ""
	}
	return m.Item.Content[0].Text
}

// Transport records every message passed to Send.
type Transport struct {
	mu sync.Mutex

	// SendErr, if non-nil, is returned from every Send call. Messages are
	// still recorded.
	SendErr error

	// Sent holds the raw payloads in order.
	Sent [][]byte
}

// Send records msg and returns SendErr.
func (t *Transport) Send(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(msg))
	copy(cp, msg)
	t.Sent = append(t.Sent, cp)
	return t.SendErr
}

// SetSendErr replaces SendErr.
func (t *Transport) SetSendErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SendErr = err
}

// Decoded returns every recorded payload decoded as a [Message]. Payloads that
// fail to decode are skipped.
func (t *Transport) Decoded() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, 0, len(t.Sent))
	for _, raw := range t.Sent {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Prompts returns the text of every conversation item sent, in order.
func (t *Transport) Prompts() []string {
	var out []string
	for _, m := range t.Decoded() {
		if m.Type == realtime.TypeConversationItemCreate {
			out = append(out, m.Text())
		}
	}
	return out
}

// Count returns how many messages of the given type were sent.
func (t *Transport) Count(msgType string) int {
	n := 0
	for _, m := range t.Decoded() {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

// Reset clears the recorded messages.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Sent = nil
}
