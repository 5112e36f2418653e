package realtime

import (
	"encoding/json"
	"testing"
)

func TestSessionUpdate_Fields(t *testing.T) {
	t.Parallel()

	data, err := SessionUpdate(SessionSettings{
		Voice:              "alloy",
		TranscriptionModel: "whisper-1",
		TurnDetection:      TurnDetection{Type: "server_vad", Threshold: 0.5, PrefixPaddingMs: 300, SilenceDurationMs: 700},
		Instructions:       "Help the user draft a charter.",
	})
	if err != nil {
		t.Fatalf("SessionUpdate: %v", err)
	}

	var msg struct {
		Type    string `json:"type"`
		Session struct {
			Voice                   string `json:"voice"`
			Instructions            string `json:"instructions"`
			InputAudioTranscription struct {
				Model string `json:"model"`
			} `json:"input_audio_transcription"`
			TurnDetection struct {
				Type              string  `json:"type"`
				Threshold         float64 `json:"threshold"`
				PrefixPaddingMs   int     `json:"prefix_padding_ms"`
				SilenceDurationMs int     `json:"silence_duration_ms"`
			} `json:"turn_detection"`
		} `json:"session"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if msg.Type != TypeSessionUpdate {
		t.Errorf("type = %q; want %q", msg.Type, TypeSessionUpdate)
	}
	if msg.Session.Voice != "alloy" {
		t.Errorf("voice = %q; want alloy", msg.Session.Voice)
	}
	if msg.Session.InputAudioTranscription.Model != "whisper-1" {
		t.Errorf("transcription model = %q; want whisper-1", msg.Session.InputAudioTranscription.Model)
	}
	if msg.Session.TurnDetection.Type != "server_vad" || msg.Session.TurnDetection.SilenceDurationMs != 700 {
		t.Errorf("turn_detection = %+v", msg.Session.TurnDetection)
	}
	if msg.Session.Instructions == "" {
		t.Error("instructions should be set")
	}
}

func TestSessionUpdate_OmitsEmptyBlocks(t *testing.T) {
	t.Parallel()

	data, err := SessionUpdate(SessionSettings{})
	if err != nil {
		t.Fatalf("SessionUpdate: %v", err)
	}
	var raw struct {
		Type    string         `json:"type"`
		Session map[string]any `json:"session"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw.Type != TypeSessionUpdate || raw.Session == nil {
		t.Fatalf("message = %s; want a session.update with a session block", data)
	}
	if _, ok := raw.Session["turn_detection"]; ok {
		t.Error("turn_detection should be omitted")
	}
	if _, ok := raw.Session["input_audio_transcription"]; ok {
		t.Error("input_audio_transcription should be omitted")
	}
}

func TestConversationItem_Roles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role     Role
		wantRole string
		wantPart string
	}{
		{RoleSystem, "system", "input_text"},
		{RoleAssistant, "assistant", "text"},
		{RoleUser, "user", "input_text"},
		{Role("narrator"), "user", "input_text"},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			t.Parallel()
			data, err := ConversationItem(tc.role, "hello")
			if err != nil {
				t.Fatalf("ConversationItem: %v", err)
			}
			var msg createConversationItemMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if msg.Type != TypeConversationItemCreate {
				t.Errorf("type = %q", msg.Type)
			}
			if msg.Item.Role != tc.wantRole {
				t.Errorf("role = %q; want %q", msg.Item.Role, tc.wantRole)
			}
			if len(msg.Item.Content) != 1 || msg.Item.Content[0].Type != tc.wantPart || msg.Item.Content[0].Text != "hello" {
				t.Errorf("content = %+v", msg.Item.Content)
			}
		})
	}
}

func TestResponseCreate(t *testing.T) {
	t.Parallel()

	data, err := ResponseCreate()
	if err != nil {
		t.Fatalf("ResponseCreate: %v", err)
	}
	if string(data) != `{"type":"response.create"}` {
		t.Errorf("payload = %s", data)
	}
}
