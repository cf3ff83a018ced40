// Package session holds the conversation state of active phone calls.
//
// A CallSession lives from the first provider callback for a call until
// the terminal-status callback. Nothing here survives a process restart: a
// callback for a call that was lost simply starts a fresh, empty session.
package session

import "time"

// Role attributes a turn to one side of the conversation.
type Role string

const (
	// RoleCaller is the farmer on the phone.
	RoleCaller Role = "caller"

	// RoleAssistant is the generated reply played back to the caller.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCaller || r == RoleAssistant
}

// Turn is one utterance in a call.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CallerTurn builds a caller turn.
func CallerTurn(content string) Turn { return Turn{Role: RoleCaller, Content: content} }

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// CallSession is the state of one active call.
type CallSession struct {
	// CallID is the provider-assigned call identifier (e.g. Twilio CallSid).
	CallID string `json:"call_id"`

	// Language is the display name resolved from the call locale (e.g. "Hindi").
	Language string `json:"language"`

	// CallerNumber is the caller's phone number. Empty if withheld.
	CallerNumber string `json:"caller_number,omitempty"`

	// History is the ordered, append-only list of turns.
	History []Turn `json:"history"`

	// StartedAt is when the session was created.
	StartedAt time.Time `json:"started_at"`

	// LastActivity is when the session was created or last appended to.
	LastActivity time.Time `json:"last_activity"`
}

// HasCallerNumber reports whether a caller number was recorded.
func (s *CallSession) HasCallerNumber() bool {
	return s.CallerNumber != ""
}

// clone returns a deep copy so callers never share the stored history slice.
func (s *CallSession) clone() *CallSession {
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	return &c
}

// Alternates reports whether history starts with a caller turn and strictly
// alternates caller, assistant, caller, ...
func Alternates(history []Turn) bool {
	for i, t := range history {
		want := RoleCaller
		if i%2 == 1 {
			want = RoleAssistant
		}
		if t.Role != want {
			return false
		}
	}
	return true
}
