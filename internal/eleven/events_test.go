package eleven

import (
	"testing"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/relay"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want relay.AgentEvent
	}{
		{
			name: "audio",
			data: `{"type":"audio","audio_event":{"audio_base_64":"QUJD","sample_rate":24000}}`,
			want: relay.AgentEvent{Kind: relay.EventAudio, Audio: relay.AudioChunk{Data: "QUJD", SampleRate: 24000}},
		},
		{
			name: "audio default sample rate",
			data: `{"type":"audio","audio_event":{"audio_base_64":"QUJD"}}`,
			want: relay.AgentEvent{Kind: relay.EventAudio, Audio: relay.AudioChunk{Data: "QUJD", SampleRate: 16000}},
		},
		{
			name: "agent response",
			data: `{"type":"agent_response","agent_response_event":{"agent_response":"We have an opening tomorrow."}}`,
			want: relay.AgentEvent{Kind: relay.EventTranscript, Role: call.RoleAssistant, Text: "We have an opening tomorrow."},
		},
		{
			name: "empty agent response ignored",
			data: `{"type":"agent_response","agent_response_event":{"agent_response":""}}`,
			want: relay.AgentEvent{Kind: relay.EventIgnored},
		},
		{
			name: "user transcript",
			data: `{"type":"user_transcript","user_transcription_event":{"user_transcript":"Tomorrow works."}}`,
			want: relay.AgentEvent{Kind: relay.EventTranscript, Role: call.RoleUser, Text: "Tomorrow works."},
		},
		{
			name: "initiation metadata",
			data: `{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv-42"}}`,
			want: relay.AgentEvent{Kind: relay.EventReady, ConversationID: "conv-42"},
		},
		{
			name: "error",
			data: `{"type":"error","message":"quota exceeded"}`,
			want: relay.AgentEvent{Kind: relay.EventError, Message: "quota exceeded"},
		},
		{
			name: "internal error without message",
			data: `{"type":"internal_error"}`,
			want: relay.AgentEvent{Kind: relay.EventError, Message: "voice agent error"},
		},
		{
			name: "unknown type dropped",
			data: `{"type":"ping","ping_event":{"event_id":7}}`,
			want: relay.AgentEvent{Kind: relay.EventIgnored},
		},
		{
			name: "missing type dropped",
			data: `{"something":"else"}`,
			want: relay.AgentEvent{Kind: relay.EventIgnored},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEvent([]byte(tt.data))
			if err != nil {
				t.Fatalf("decodeEvent error: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeEvent = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"type":"audio"`},
		{"audio missing payload", `{"type":"audio"}`},
		{"agent response missing payload", `{"type":"agent_response"}`},
		{"user transcript missing payload", `{"type":"user_transcript"}`},
		{"metadata missing payload", `{"type":"conversation_initiation_metadata"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEvent([]byte(tt.data)); err == nil {
				t.Error("decodeEvent accepted malformed input")
			}
		})
	}
}
