package ws

import (
	"github.com/callpilot/backend/internal/call"
)

type MessageType string

const (
	MsgStatus     MessageType = "status"
	MsgTranscript MessageType = "transcript"
	MsgAudio      MessageType = "audio"
	MsgCallEnded  MessageType = "call_ended"
	MsgError      MessageType = "error"
)

// StatusMessage reports call progress: "connecting", "connected",
// "session_ready".
type StatusMessage struct {
	Type           MessageType `json:"type"`
	Message        string      `json:"message"`
	CallID         string      `json:"call_id,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
}

type TranscriptMessage struct {
	Type MessageType `json:"type"`
	Role call.Role   `json:"role"`
	Text string      `json:"text"`
}

// AudioMessage carries one PCM16 chunk of agent speech, base64-encoded.
type AudioMessage struct {
	Type       MessageType `json:"type"`
	Data       string      `json:"data"`
	Format     string      `json:"format"`
	SampleRate int         `json:"sample_rate"`
}

// Slot is one proposed appointment time.
type Slot struct {
	Datetime string `json:"datetime"`
	Duration int    `json:"duration"`
}

// Summary accompanies a demo call's ending: the slots the scripted
// receptionist offered.
type Summary struct {
	SlotsOffered []Slot `json:"slots_offered"`
	Provider     string `json:"provider"`
}

// CallEndedMessage is the final message of a call. Demo calls carry a
// Summary; live calls carry the full transcript.
type CallEndedMessage struct {
	Type       MessageType `json:"type"`
	Reason     string      `json:"reason"`
	Summary    *Summary    `json:"summary,omitempty"`
	Transcript []call.Line `json:"transcript,omitempty"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// InboundMessage is a text frame from the browser. Binary frames are
// raw PCM16 audio and never reach this type.
type InboundMessage struct {
	Type string `json:"type"` // "audio" or "stop"
	Data string `json:"data,omitempty"`
}

// InitMessage is the first frame of a call: who to dial and why.
type InitMessage struct {
	ProviderName string `json:"provider_name"`
	ServiceType  string `json:"service_type"`
}
