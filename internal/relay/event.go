package relay

import (
	"errors"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/ws"
)

// ErrConnClosed is returned by AgentConn.Receive when the upstream
// peer hangs up or the transport is closed underneath it. It is an
// expected terminal condition, not a failure.
var ErrConnClosed = errors.New("connection closed")

// EventKind discriminates agent events. The zero value is Ignored so a
// decoder that recognizes nothing yields an event the pump drops.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventAudio
	EventTranscript
	EventReady
	EventCompleted
	EventError
)

// AudioChunk is one base64 PCM16 chunk of agent speech.
type AudioChunk struct {
	Data       string
	SampleRate int
}

// AgentEvent is the closed union of everything the agent side can
// deliver. Which fields are meaningful depends on Kind:
//
//	EventAudio      — Audio
//	EventTranscript — Role, Text
//	EventReady      — ConversationID
//	EventCompleted  — Summary (may be nil)
//	EventError      — Message
type AgentEvent struct {
	Kind           EventKind
	Audio          AudioChunk
	Role           call.Role
	Text           string
	ConversationID string
	Summary        *ws.Summary
	Message        string
}
