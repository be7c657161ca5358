package call

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCallActive is returned by Start when the single call slot is taken.
var ErrCallActive = errors.New("a call is already in progress")

// transcriptTail is how many lines observers see in a snapshot.
const transcriptTail = 20

// Role identifies the speaker of a transcript line.
type Role int

const (
	RoleAssistant Role = iota
	RoleUser
	RoleSystem
)

var roleNames = map[Role]string{
	RoleAssistant: "assistant",
	RoleUser:      "user",
	RoleSystem:    "system",
}

var roleFromName = map[string]Role{
	"assistant": RoleAssistant,
	"user":      RoleUser,
	"system":    RoleSystem,
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "unknown"
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := roleFromName[s]; ok {
		*r = v
	}
	return nil
}

// Line is a single transcript entry.
type Line struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// State is the single-slot record for the one call this process may
// carry at a time. All access goes through its methods; the zero-value
// via NewState is ready to use. Handlers and the relay coordinator
// share one instance by reference so tests can build isolated ones.
type State struct {
	mu           sync.Mutex
	active       bool
	callID       string
	providerName string
	startedAt    time.Time
	transcript   []Line
	lastError    string
	done         chan struct{}
}

func NewState() *State {
	return &State{}
}

// Start claims the call slot. Exactly one of two racing callers wins;
// the loser gets ErrCallActive. A successful claim resets the
// transcript and error from the previous call and returns the new
// call ID.
func (s *State) Start(providerName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return "", ErrCallActive
	}
	s.active = true
	s.callID = "call-" + uuid.NewString()
	s.providerName = providerName
	s.startedAt = time.Now()
	s.transcript = nil
	s.lastError = ""
	s.done = make(chan struct{})
	return s.callID, nil
}

// Stop deactivates the call and releases the slot. Idempotent: safe to
// call repeatedly or with no call active. The call ID, transcript and
// error remain readable until the next Start.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
}

// Done returns a channel closed when the current call is stopped. With
// no call active the returned channel is already closed.
func (s *State) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return s.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Active reports whether a call currently holds the slot.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Append records a transcript line. Lines arriving after the call was
// stopped are dropped: the transcript belongs to the active call only.
func (s *State) Append(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.transcript = append(s.transcript, Line{Role: role, Text: text})
}

// SetError records the reason the call ended abnormally.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// Transcript returns a copy of every line recorded so far, in order.
func (s *State) Transcript() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Snapshot is a point-in-time view of the call slot for observers.
type Snapshot struct {
	Active         bool    `json:"active"`
	CallID         string  `json:"call_id"`
	ProviderName   string  `json:"provider_name"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Transcript     []Line  `json:"transcript"`
	Error          string  `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of the slot. The transcript holds
// at most the last 20 lines; elapsed time is zero when inactive.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Active:       s.active,
		CallID:       s.callID,
		ProviderName: s.providerName,
		Error:        s.lastError,
	}
	if s.active && !s.startedAt.IsZero() {
		snap.ElapsedSeconds = float64(int(time.Since(s.startedAt).Seconds()*10)) / 10
	}

	tail := s.transcript
	if len(tail) > transcriptTail {
		tail = tail[len(tail)-transcriptTail:]
	}
	snap.Transcript = make([]Line, len(tail))
	copy(snap.Transcript, tail)
	return snap
}
