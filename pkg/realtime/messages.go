// Package realtime defines the outbound control messages a voice capture
// session sends to a realtime speech agent, the [Transport] they travel over,
// and a WebSocket [Client] for the OpenAI Realtime protocol.
//
// Messages are JSON text. The session controller treats them as opaque
// payloads: it never inspects transport-level acknowledgments. Inbound events
// are decoded by the [Client] into plain transcript strings.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Message type identifiers used on the wire.
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
)

// Role is the speaker role of a conversation item.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type" yaml:"type"`
	Threshold         float64 `json:"threshold,omitempty" yaml:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty" yaml:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty" yaml:"silence_duration_ms"`
}

// SessionSettings is the payload of a session-configuration message.
type SessionSettings struct {
	// Voice is the provider voice id (e.g. "alloy").
	Voice string

	// TranscriptionModel selects the input transcription model
	// (e.g. "whisper-1").
	TranscriptionModel string

	// TurnDetection configures turn-taking. The zero value omits the block.
	TurnDetection TurnDetection

	// Instructions is the system prompt for the spoken agent.
	Instructions string
}

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Voice                   string               `json:"voice,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Modalities              []string             `json:"modalities"`
	InputAudioTranscription *transcriptionParams `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection       `json:"turn_detection,omitempty"`
}

type transcriptionParams struct {
	Model string `json:"model"`
}

type createConversationItemMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []conversationPart `json:"content,omitempty"`
}

type conversationPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// SessionUpdate encodes a session.update message.
func SessionUpdate(s SessionSettings) ([]byte, error) {
	params := sessionParams{
		Voice:        s.Voice,
		Instructions: s.Instructions,
		Modalities:   []string{"audio", "text"},
	}
	if s.TranscriptionModel != "" {
		params.InputAudioTranscription = &transcriptionParams{Model: s.TranscriptionModel}
	}
	if s.TurnDetection.Type != "" {
		td := s.TurnDetection
		params.TurnDetection = &td
	}
	return marshal(sessionUpdateMessage{Type: TypeSessionUpdate, Session: params})
}

// ConversationItem encodes a conversation.item.create message carrying text
// from role. Unknown roles are coerced to "user"; assistant items use the
// "text" part type, everything else uses "input_text".
func ConversationItem(role Role, text string) ([]byte, error) {
	switch role {
	case RoleSystem, RoleAssistant:
	default:
		role = RoleUser
	}
	partType := "input_text"
	if role == RoleAssistant {
		partType = "text"
	}
	return marshal(createConversationItemMessage{
		Type: TypeConversationItemCreate,
		Item: conversationItem{
			Type:    "message",
			Role:    string(role),
			Content: []conversationPart{{Type: partType, Text: text}},
		},
	})
}

// ResponseCreate encodes a response.create message asking the agent to speak.
func ResponseCreate() ([]byte, error) {
	return marshal(map[string]string{"type": TypeResponseCreate})
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("realtime: marshal: %w", err)
	}
	return data, nil
}
