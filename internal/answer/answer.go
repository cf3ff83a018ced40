// Package answer defines the capability that turns a caller's question into
// a spoken reply, and that summarizes a finished call.
//
// Farmline does not reason about crops, prices or schemes itself: a hosted
// language model does. This package is the seam between the call state
// machine and that model.
package answer

import (
	"context"

	"github.com/nadzzz/farmline/internal/session"
)

// Request is one question asked during a call.
type Request struct {
	// CallID identifies the call, for logging and provider-side tracing.
	CallID string

	// Question is the caller's latest utterance.
	Question string

	// Language is the display name of the conversation language (e.g. "Hindi").
	Language string

	// History is the conversation so far, not including Question.
	History []session.Turn
}

// Result is the assistant's reply.
type Result struct {
	// Text is the reply as plain text.
	Text string

	// Audio is the reply synthesized as a WAV file. Empty if synthesis was
	// disabled or failed; callers then speak Text with provider TTS.
	Audio []byte

	// ContentType is the MIME type of Audio.
	ContentType string
}

// HasAudio reports whether the result carries synthesized speech.
func (r *Result) HasAudio() bool {
	return len(r.Audio) > 0
}

// Service answers questions and summarizes calls.
type Service interface {
	// Answer produces a reply to req.Question in req.Language.
	Answer(ctx context.Context, req Request) (*Result, error)

	// Summarize condenses a finished call into a short SMS-sized text in
	// the given language.
	Summarize(ctx context.Context, history []session.Turn, language string) (string, error)
}
