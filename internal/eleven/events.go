package eleven

import (
	"encoding/json"
	"fmt"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/relay"
)

const defaultSampleRate = 16000

// Upstream event envelope. The conversation protocol multiplexes every
// event kind onto one channel, discriminated by "type"; each kind
// nests its payload under its own sub-object.
type envelope struct {
	Type                   string             `json:"type"`
	AudioEvent             *audioEvent        `json:"audio_event"`
	AgentResponseEvent     *agentResponse     `json:"agent_response_event"`
	UserTranscriptionEvent *userTranscription `json:"user_transcription_event"`
	InitiationMetadata     *initiationMeta    `json:"conversation_initiation_metadata_event"`
	Message                string             `json:"message"`
}

type audioEvent struct {
	AudioBase64 string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
}

type agentResponse struct {
	AgentResponse string `json:"agent_response"`
}

type userTranscription struct {
	UserTranscript string `json:"user_transcript"`
}

type initiationMeta struct {
	ConversationID string `json:"conversation_id"`
}

// userAudioChunk is the only outbound payload after initiation.
type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type initiationRequest struct {
	Type           string          `json:"type"`
	ConfigOverride *configOverride `json:"conversation_config_override,omitempty"`
}

type configOverride struct {
	Agent agentOverride `json:"agent"`
}

type agentOverride struct {
	Prompt promptOverride `json:"prompt"`
}

type promptOverride struct {
	Prompt string `json:"prompt"`
}

// decodeEvent maps one upstream frame onto the relay's event union.
// Unknown event types decode to an ignored event for forward
// compatibility; a recognized type with a missing payload is an error
// and terminates the call.
func decodeEvent(data []byte) (relay.AgentEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return relay.AgentEvent{}, fmt.Errorf("malformed agent event: %w", err)
	}

	switch env.Type {
	case "audio":
		if env.AudioEvent == nil {
			return relay.AgentEvent{}, fmt.Errorf("audio event missing audio_event payload")
		}
		rate := env.AudioEvent.SampleRate
		if rate == 0 {
			rate = defaultSampleRate
		}
		return relay.AgentEvent{
			Kind:  relay.EventAudio,
			Audio: relay.AudioChunk{Data: env.AudioEvent.AudioBase64, SampleRate: rate},
		}, nil

	case "agent_response":
		if env.AgentResponseEvent == nil {
			return relay.AgentEvent{}, fmt.Errorf("agent_response event missing payload")
		}
		if env.AgentResponseEvent.AgentResponse == "" {
			return relay.AgentEvent{}, nil
		}
		return relay.AgentEvent{
			Kind: relay.EventTranscript,
			Role: call.RoleAssistant,
			Text: env.AgentResponseEvent.AgentResponse,
		}, nil

	case "user_transcript":
		if env.UserTranscriptionEvent == nil {
			return relay.AgentEvent{}, fmt.Errorf("user_transcript event missing payload")
		}
		if env.UserTranscriptionEvent.UserTranscript == "" {
			return relay.AgentEvent{}, nil
		}
		return relay.AgentEvent{
			Kind: relay.EventTranscript,
			Role: call.RoleUser,
			Text: env.UserTranscriptionEvent.UserTranscript,
		}, nil

	case "conversation_initiation_metadata":
		if env.InitiationMetadata == nil {
			return relay.AgentEvent{}, fmt.Errorf("conversation_initiation_metadata event missing payload")
		}
		return relay.AgentEvent{
			Kind:           relay.EventReady,
			ConversationID: env.InitiationMetadata.ConversationID,
		}, nil

	case "error", "internal_error":
		msg := env.Message
		if msg == "" {
			msg = "voice agent error"
		}
		return relay.AgentEvent{Kind: relay.EventError, Message: msg}, nil

	default:
		return relay.AgentEvent{}, nil
	}
}
