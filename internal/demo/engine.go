// Package demo substitutes the upstream voice agent when no live
// credentials are configured. It implements the same transport
// contract the live adapter does, so the relay coordinator runs a
// demo call and a live call identically.
package demo

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/callpilot/backend/internal/call"
	"github.com/callpilot/backend/internal/relay"
	"github.com/callpilot/backend/internal/ws"
)

const (
	silenceFrameBytes = 3200
	sampleRate        = 16000
	slotMinutes       = 30
)

type Config struct {
	// Pause before each scripted line, drawn uniformly from
	// [MinPause, MaxPause]. Tests shrink these to keep runs fast.
	MinPause time.Duration
	MaxPause time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinPause: 2 * time.Second,
		MaxPause: 3500 * time.Millisecond,
	}
}

// Dialer returns an AgentDialer that starts scripted conversations.
// It never fails: the demo receptionist always picks up.
func Dialer(cfg Config) relay.AgentDialer {
	return func(ctx context.Context, providerName, serviceType string) (relay.AgentConn, error) {
		return NewConn(cfg, providerName, serviceType), nil
	}
}

func script(providerName, serviceType string) []string {
	return []string{
		fmt.Sprintf("Hello, this is %s. How can I help you today?", providerName),
		fmt.Sprintf("Sure, let me check our schedule for %s appointments...", serviceType),
		"We have an opening tomorrow at 2:30 PM.",
		"We also have availability on Thursday at 10:00 AM.",
		"Would either of those times work for you?",
		"Great! I'll pencil that in for you. Is there anything else?",
		"Thank you for calling! Have a wonderful day.",
	}
}

// offeredSlots mirrors the two openings the script mentions.
func offeredSlots(now time.Time) []ws.Slot {
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 14, 30, 0, 0, now.Location()).AddDate(0, 0, 1)
	later := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, now.Location()).AddDate(0, 0, 3)
	const layout = "2006-01-02T15:04:05"
	return []ws.Slot{
		{Datetime: tomorrow.Format(layout), Duration: slotMinutes},
		{Datetime: later.Format(layout), Duration: slotMinutes},
	}
}

// Conn plays a scripted receptionist. Receive is driven by the relay's
// agent pump from a single goroutine; Close may race it from the
// coordinator's teardown and unblocks any in-progress pause.
type Conn struct {
	provider string
	lines    []string
	summary  *ws.Summary

	pending []relay.AgentEvent
	next    int
	ended   bool

	minPause time.Duration
	maxPause time.Duration
	rng      *rand.Rand

	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(cfg Config, providerName, serviceType string) *Conn {
	c := &Conn{
		provider: providerName,
		lines:    script(providerName, serviceType),
		summary: &ws.Summary{
			SlotsOffered: offeredSlots(time.Now()),
			Provider:     providerName,
		},
		minPause: cfg.MinPause,
		maxPause: cfg.MaxPause,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		done:     make(chan struct{}),
	}

	// Opening events need no pause: the system line marks the call in
	// the transcript, the ready event mimics upstream session metadata.
	c.pending = append(c.pending,
		relay.AgentEvent{
			Kind: relay.EventTranscript,
			Role: call.RoleSystem,
			Text: fmt.Sprintf("[Demo] Call with %s", providerName),
		},
		relay.AgentEvent{
			Kind:           relay.EventReady,
			ConversationID: "demo-" + uuid.NewString(),
		},
	)
	return c
}

// SendAudio discards the caller's audio; the scripted receptionist
// talks on her own schedule.
func (c *Conn) SendAudio(string) error {
	select {
	case <-c.done:
		return relay.ErrConnClosed
	default:
		return nil
	}
}

// Receive returns the next scripted event. Each line yields a
// transcript event followed by a silence audio frame; after the last
// line comes a completion event carrying the offered slots, then the
// connection reads as closed.
func (c *Conn) Receive() (relay.AgentEvent, error) {
	if len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		return ev, nil
	}

	select {
	case <-c.done:
		return relay.AgentEvent{}, relay.ErrConnClosed
	default:
	}

	if c.next >= len(c.lines) {
		if !c.ended {
			c.ended = true
			return relay.AgentEvent{Kind: relay.EventCompleted, Summary: c.summary}, nil
		}
		return relay.AgentEvent{}, relay.ErrConnClosed
	}

	if err := c.pause(); err != nil {
		return relay.AgentEvent{}, err
	}

	line := c.lines[c.next]
	c.next++

	silence := base64.StdEncoding.EncodeToString(make([]byte, silenceFrameBytes))
	c.pending = append(c.pending, relay.AgentEvent{
		Kind:  relay.EventAudio,
		Audio: relay.AudioChunk{Data: silence, SampleRate: sampleRate},
	})
	return relay.AgentEvent{Kind: relay.EventTranscript, Role: call.RoleAssistant, Text: line}, nil
}

// pause waits a bounded random interval before the next line, bailing
// out as soon as the connection is closed.
func (c *Conn) pause() error {
	d := c.minPause
	if c.maxPause > c.minPause {
		d += time.Duration(c.rng.Int63n(int64(c.maxPause - c.minPause)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.done:
		return relay.ErrConnClosed
	case <-timer.C:
		return nil
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}
