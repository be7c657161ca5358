package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/ws"
)

// End reasons reported in the final call_ended message.
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonError     = "error"
)

// Sentinel results of the pump loops. They are errors only so the
// errgroup cancels the sibling pump; all of them except genuine
// failures map to a normal end reason.
var (
	errStopped    = errors.New("client requested stop")
	errClientGone = errors.New("client disconnected")
	errAgentGone  = errors.New("agent connection closed")
	errAgentDone  = errors.New("agent completed the call")
)

// ClientConn is the browser half of a call. *ws.Conn satisfies it; the
// tests substitute an in-memory fake.
type ClientConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// AgentConn is the upstream half of a call: the live voice agent or
// the demo fallback. Receive blocks until an event arrives and returns
// ErrConnClosed once the peer is gone. Close must be idempotent
// because teardown races the pump that owns the connection.
type AgentConn interface {
	SendAudio(base64Chunk string) error
	Receive() (AgentEvent, error)
	Close() error
}

// AgentDialer opens the agent side of a call.
type AgentDialer func(ctx context.Context, providerName, serviceType string) (AgentConn, error)

// Coordinator owns the life of one call at a time: admission against
// the shared call slot, the agent-side dial, the two pump loops, and
// teardown of both transports.
type Coordinator struct {
	state       *call.State
	dial        AgentDialer
	initTimeout time.Duration
}

func NewCoordinator(state *call.State, dial AgentDialer, initTimeout time.Duration) *Coordinator {
	return &Coordinator{
		state:       state,
		dial:        dial,
		initTimeout: initTimeout,
	}
}

// outcome collects the terminal condition of a call. The first pump to
// settle wins; later signals are ignored so teardown happens once with
// one story.
type outcome struct {
	mu      sync.Mutex
	settled bool
	reason  string
	summary *ws.Summary
	errMsg  string
}

func (o *outcome) settle(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.settled {
		return
	}
	o.settled = true
	o.reason = reason
}

func (o *outcome) settleError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.settled {
		return
	}
	o.settled = true
	o.reason = ReasonError
	o.errMsg = msg
}

func (o *outcome) setSummary(s *ws.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summary = s
}

func (o *outcome) result() (reason string, summary *ws.Summary, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.settled {
		return ReasonCompleted, o.summary, ""
	}
	return o.reason, o.summary, o.errMsg
}

// HandleCall runs one call on an accepted browser connection, from
// init handshake to teardown. It returns only when the call is over
// and both transports are closed.
func (c *Coordinator) HandleCall(ctx context.Context, conn ClientConn) {
	defer conn.Close()

	init, err := c.readInit(conn)
	if err != nil {
		c.sendError(conn, fmt.Sprintf("Bad init: %v", err))
		return
	}

	callID, err := c.state.Start(init.ProviderName)
	if err != nil {
		c.sendError(conn, "Another call is already in progress")
		return
	}
	log.Printf("call %s: admitted for %q (%s)", callID, init.ProviderName, init.ServiceType)

	if err := conn.WriteJSON(ws.StatusMessage{Type: ws.MsgStatus, Message: "connecting", CallID: callID}); err != nil {
		c.state.Stop()
		return
	}

	agent, err := c.dial(ctx, init.ProviderName, init.ServiceType)
	if err != nil {
		log.Printf("call %s: agent dial failed: %v", callID, err)
		c.state.SetError(err.Error())
		c.state.Stop()
		c.sendError(conn, err.Error())
		return
	}

	if err := conn.WriteJSON(ws.StatusMessage{Type: ws.MsgStatus, Message: "connected"}); err != nil {
		c.state.Stop()
		agent.Close()
		return
	}

	o := &outcome{}
	c.runPumps(ctx, conn, agent, o)

	// An external stop flips the slot inactive before the pumps see
	// their transports die; report that as "stopped" unless something
	// more specific already settled.
	stoppedExternally := !c.state.Active()
	transcript := c.state.Transcript()
	c.state.Stop()

	reason, summary, errMsg := o.result()
	if stoppedExternally && reason == ReasonCompleted {
		reason = ReasonStopped
	}
	if errMsg != "" {
		c.state.SetError(errMsg)
		c.sendError(conn, errMsg)
	}

	end := ws.CallEndedMessage{Type: ws.MsgCallEnded, Reason: reason}
	if summary != nil {
		end.Summary = summary
	} else {
		end.Transcript = transcript
	}
	// Best effort: the client may already be gone.
	if err := conn.WriteJSON(end); err == nil {
		log.Printf("call %s: ended (%s)", callID, reason)
	} else {
		log.Printf("call %s: ended (%s), client unreachable", callID, reason)
	}
}

// runPumps drives both directions until one hits a terminal condition,
// then closes both transports so the sibling unblocks, and waits for
// both to finish. An external stop (the call slot deactivating) closes
// the transports the same way.
func (c *Coordinator) runPumps(ctx context.Context, conn ClientConn, agent AgentConn, o *outcome) {
	defer agent.Close()

	g, pumpCtx := errgroup.WithContext(ctx)

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-pumpCtx.Done():
		case <-c.state.Done():
		}
		// Expire the client read rather than closing the connection:
		// the blocked pump unblocks but the write side stays usable for
		// the best-effort final notification.
		conn.SetReadDeadline(time.Now())
		agent.Close()
	}()

	g.Go(func() error { return c.clientToAgent(conn, agent) })
	g.Go(func() error { return c.agentToClient(conn, agent, o) })

	err := g.Wait()
	switch {
	case err == nil || errors.Is(err, errClientGone) || errors.Is(err, errAgentGone) || errors.Is(err, errAgentDone):
		o.settle(ReasonCompleted)
	case errors.Is(err, errStopped):
		o.settle(ReasonStopped)
	default:
		o.settleError(err.Error())
	}
	<-watchDone
}

// clientToAgent forwards browser audio upstream. Binary frames are raw
// PCM16; text frames are JSON control messages. A stop message ends
// the pump immediately: nothing received after it is forwarded.
func (c *Coordinator) clientToAgent(conn ClientConn, agent AgentConn) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return errClientGone
		}

		switch msgType {
		case websocket.BinaryMessage:
			chunk := base64.StdEncoding.EncodeToString(data)
			if err := agent.SendAudio(chunk); err != nil {
				return errAgentGone
			}
		case websocket.TextMessage:
			var in ws.InboundMessage
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("malformed client message: %w", err)
			}
			switch in.Type {
			case "stop":
				return errStopped
			case "audio":
				if in.Data == "" {
					continue
				}
				if err := agent.SendAudio(in.Data); err != nil {
					return errAgentGone
				}
			}
			// Unknown control types are dropped.
		}
	}
}

// agentToClient forwards agent events to the browser, recording
// transcript lines as they arrive. System lines go to the transcript
// only; the browser protocol carries assistant and user speech.
func (c *Coordinator) agentToClient(conn ClientConn, agent AgentConn, o *outcome) error {
	for {
		ev, err := agent.Receive()
		if err != nil {
			if errors.Is(err, ErrConnClosed) {
				return errAgentGone
			}
			return err
		}

		switch ev.Kind {
		case EventIgnored:
			continue

		case EventAudio:
			msg := ws.AudioMessage{
				Type:       ws.MsgAudio,
				Data:       ev.Audio.Data,
				Format:     "pcm16",
				SampleRate: ev.Audio.SampleRate,
			}
			if err := conn.WriteJSON(msg); err != nil {
				return errClientGone
			}

		case EventTranscript:
			c.state.Append(ev.Role, ev.Text)
			if ev.Role == call.RoleSystem {
				continue
			}
			msg := ws.TranscriptMessage{Type: ws.MsgTranscript, Role: ev.Role, Text: ev.Text}
			if err := conn.WriteJSON(msg); err != nil {
				return errClientGone
			}

		case EventReady:
			msg := ws.StatusMessage{Type: ws.MsgStatus, Message: "session_ready", ConversationID: ev.ConversationID}
			if err := conn.WriteJSON(msg); err != nil {
				return errClientGone
			}

		case EventCompleted:
			o.setSummary(ev.Summary)
			return errAgentDone

		case EventError:
			return fmt.Errorf("agent error: %s", ev.Message)
		}
	}
}

func (c *Coordinator) readInit(conn ClientConn) (ws.InitMessage, error) {
	init := ws.InitMessage{
		ProviderName: "Unknown Provider",
		ServiceType:  "appointment",
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.initTimeout)); err != nil {
		return init, err
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return init, err
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return init, err
	}
	if msgType != websocket.TextMessage {
		return init, errors.New("expected a JSON init message")
	}

	var raw ws.InitMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return init, err
	}
	if raw.ProviderName != "" {
		init.ProviderName = raw.ProviderName
	}
	if raw.ServiceType != "" {
		init.ServiceType = raw.ServiceType
	}
	return init, nil
}

// sendError is best effort; the peer may already be gone.
func (c *Coordinator) sendError(conn ClientConn, msg string) {
	_ = conn.WriteJSON(ws.ErrorMessage{Type: ws.MsgError, Message: msg})
}
