// Package openai implements the TTS Synthesizer using the OpenAI speech API
// (or any OpenAI-compatible /audio/speech endpoint).
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/farmline/internal/config"
	"github.com/nadzzz/farmline/internal/tts"
)

// maxAudioBytes caps a single synthesized reply.
const maxAudioBytes = 10 << 20

// Synthesizer calls CreateSpeech and asks for WAV output. OpenAI voices are
// multilingual, so the language only matters for logging.
type Synthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

// New creates a synthesizer on top of an existing client.
func New(client *openai.Client, cfg config.OpenAITTSConfig) *Synthesizer {
	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &Synthesizer{client: client, model: model, voice: voice}
}

// Synthesize returns the reply as a WAV file.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text for synthesis")
	}

	voice := s.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}

	slog.Debug("openai synthesize", "text_length", len(text), "voice", voice, "language", opts.Language)

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(io.LimitReader(resp, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("reading speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech response was empty")
	}

	return &tts.SynthesizeResult{
		Audio:       audio,
		ContentType: "audio/wav",
	}, nil
}

// Close is a no-op; the client is shared.
func (s *Synthesizer) Close() error { return nil }
