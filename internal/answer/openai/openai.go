// Package openai implements answer.Service with an OpenAI-compatible chat
// completion API.
//
// Any server speaking the Chat Completions protocol works (OpenAI, Azure
// gateways, Ollama, vLLM) by pointing the client's BaseURL at it. Replies
// are synthesized with the configured tts.Synthesizer.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/farmline/internal/answer"
	"github.com/nadzzz/farmline/internal/config"
	"github.com/nadzzz/farmline/internal/locale"
	"github.com/nadzzz/farmline/internal/session"
	"github.com/nadzzz/farmline/internal/tts"
)

// NewClient builds a go-openai client from config, honouring a custom base URL.
func NewClient(cfg config.AnswerConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(c)
}

// Service answers farmer questions through chat completions.
type Service struct {
	client      *openai.Client
	model       string
	synthesizer tts.Synthesizer // nil if TTS is disabled
}

// New creates a Service. synthesizer may be nil.
func New(client *openai.Client, cfg config.AnswerConfig, synthesizer tts.Synthesizer) *Service {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Service{client: client, model: model, synthesizer: synthesizer}
}

// Answer asks the model for a reply and synthesizes it. A synthesis
// failure is logged and the text-only result is returned.
func (s *Service) Answer(ctx context.Context, req answer.Request) (*answer.Result, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: answerPrompt(req.Language),
	})
	messages = append(messages, historyMessages(req.History)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})

	text, err := s.complete(ctx, messages, req.CallID)
	if err != nil {
		return nil, err
	}

	result := &answer.Result{Text: text}
	if s.synthesizer == nil {
		return result, nil
	}

	synth, err := s.synthesizer.Synthesize(ctx, text, tts.SynthesizeOpts{Language: locale.CodeOf(req.Language)})
	if err != nil {
		slog.Warn("TTS synthesis failed, continuing without audio", "call_id", req.CallID, "error", err)
		return result, nil
	}
	result.Audio = synth.Audio
	result.ContentType = synth.ContentType
	return result, nil
}

// Summarize condenses the conversation into a short SMS.
func (s *Service) Summarize(ctx context.Context, history []session.Turn, language string) (string, error) {
	if len(history) == 0 {
		return "", errors.New("nothing to summarize")
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt(language)},
		{Role: openai.ChatMessageRoleUser, Content: transcript(history)},
	}
	return s.complete(ctx, messages, "")
}

func (s *Service) complete(ctx context.Context, messages []openai.ChatCompletionMessage, callID string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned from chat API")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty reply from chat API")
	}

	slog.Debug("chat completion", "call_id", callID, "model", s.model,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return text, nil
}

func historyMessages(history []session.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == session.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return out
}
