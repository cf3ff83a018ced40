package call

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingCallSid is returned for a callback without a call identifier.
var ErrMissingCallSid = errors.New("missing CallSid")

// Callback is one telephony provider event, decoded from the webhook form.
type Callback struct {
	CallSid      string `json:"CallSid"`
	SpeechResult string `json:"SpeechResult,omitempty"`
	Digits       string `json:"Digits,omitempty"`
	Language     string `json:"Language,omitempty"`   // BCP-47 recognition locale, e.g. "hi-IN"
	CallStatus   string `json:"CallStatus,omitempty"` // queued, ringing, in-progress, completed, ...
	From         string `json:"From,omitempty"`
	Direction    string `json:"Direction,omitempty"`
}

// terminalStatuses are the CallStatus values that end a call.
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
}

// ParseCallback decodes a callback from the query string and, for POST, the
// form-encoded body. The result is invalid without a CallSid.
func ParseCallback(r *http.Request) (Callback, error) {
	if err := r.ParseForm(); err != nil {
		return Callback{}, fmt.Errorf("parsing callback form: %w", err)
	}
	cb := Callback{
		CallSid:      strings.TrimSpace(r.Form.Get("CallSid")),
		SpeechResult: strings.TrimSpace(r.Form.Get("SpeechResult")),
		Digits:       strings.TrimSpace(r.Form.Get("Digits")),
		Language:     strings.TrimSpace(r.Form.Get("Language")),
		CallStatus:   strings.TrimSpace(r.Form.Get("CallStatus")),
		From:         strings.TrimSpace(r.Form.Get("From")),
		Direction:    strings.TrimSpace(r.Form.Get("Direction")),
	}
	if cb.CallSid == "" {
		return Callback{}, ErrMissingCallSid
	}
	return cb, nil
}

// IsTerminal reports whether the callback announces the end of the call.
func (c Callback) IsTerminal() bool {
	return terminalStatuses[strings.ToLower(c.CallStatus)]
}

// Utterance is what the caller said: recognized speech, else keypad
// digits, else placeholder.
func (c Callback) Utterance(placeholder string) string {
	switch {
	case c.SpeechResult != "":
		return c.SpeechResult
	case c.Digits != "":
		return c.Digits
	default:
		return placeholder
	}
}
