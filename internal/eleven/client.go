// Package eleven is the upstream transport adapter for the ElevenLabs
// Conversational AI websocket. It owns the wire protocol in both
// directions: the session-initiation event with the calling prompt,
// the user_audio_chunk envelope for outbound audio, and the decode of
// inbound events into the relay's tagged union.
package eleven

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/callpilot/backend/internal/relay"
)

// DefaultURL is the conversation endpoint; overridable for tests.
const DefaultURL = "wss://api.elevenlabs.io/v1/convai/conversation"

type Config struct {
	URL     string
	APIKey  string
	AgentID string
}

// Dialer returns an AgentDialer that opens live conversations with the
// configured agent.
func Dialer(cfg Config) relay.AgentDialer {
	return func(ctx context.Context, providerName, serviceType string) (relay.AgentConn, error) {
		return Dial(ctx, cfg, providerName, serviceType)
	}
}

// Dial connects to the voice agent and sends the session-initiation
// event instructing it who it is calling and why.
func Dial(ctx context.Context, cfg Config, providerName, serviceType string) (*Conn, error) {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	url = fmt.Sprintf("%s?agent_id=%s", url, cfg.AgentID)

	header := http.Header{}
	header.Set("xi-api-key", cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("connecting to voice agent: %w", err)
	}

	c := &Conn{conn: conn}

	prompt := fmt.Sprintf(
		"You are calling %s to book a %s appointment. Be polite, ask about available time slots, and confirm details.",
		providerName, serviceType,
	)
	init := initiationRequest{
		Type: "conversation_initiation_client_data",
		ConfigOverride: &configOverride{
			Agent: agentOverride{Prompt: promptOverride{Prompt: prompt}},
		},
	}
	if err := c.writeJSON(init); err != nil {
		c.Close()
		return nil, fmt.Errorf("initiating conversation: %w", err)
	}

	return c, nil
}

// Conn is a live agent conversation. Receive stays with the relay's
// agent pump; SendAudio is called from the client pump, so writes are
// serialized.
type Conn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *Conn) SendAudio(base64Chunk string) error {
	return c.writeJSON(userAudioChunk{UserAudioChunk: base64Chunk})
}

// Receive blocks for the next upstream event. Transport-level read
// failures all collapse into relay.ErrConnClosed: whatever the cause,
// the conversation is over.
func (c *Conn) Receive() (relay.AgentEvent, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return relay.AgentEvent{}, fmt.Errorf("%w: %v", relay.ErrConnClosed, err)
	}
	return decodeEvent(data)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}
