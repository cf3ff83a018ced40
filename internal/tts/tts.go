// Package tts defines the interface for text-to-speech synthesis.
//
// Farmline speaks every assistant reply back to the caller. The audio is
// embedded into the provider's call-control document as a WAV data URI, so
// every backend must return a complete WAV file.
package tts

import (
	"context"
	"encoding/base64"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "hi") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates a WAV file from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// ContentType is the MIME type of the audio (always "audio/wav" today).
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 22050). Zero if unknown.
	SampleRate int

	// Channels is the number of audio channels. Zero if unknown.
	Channels int
}

// DataURI encodes audio as an RFC 2397 data URI, e.g. "data:audio/wav;base64,UklGR...".
func DataURI(contentType string, audio []byte) string {
	if contentType == "" {
		contentType = "audio/wav"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(audio)
}
