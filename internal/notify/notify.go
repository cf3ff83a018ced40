// Package notify delivers text messages to callers after a call ends.
package notify

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned by a Sender that is missing credentials.
// It is a soft failure: the call flow continues without the SMS.
var ErrNotConfigured = errors.New("notification provider not configured")

// Message is one outbound SMS.
type Message struct {
	To   string
	Body string
}

// Sender delivers SMS messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MaskPhone returns the last 4 digits of a phone number for logging.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}

// Truncate shortens body to at most max runes, ending with "..." when cut.
func Truncate(body string, max int) string {
	r := []rune(body)
	if len(r) <= max {
		return body
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
