package openai

import (
	"strings"

	"github.com/nadzzz/farmline/internal/session"
)

func answerPrompt(language string) string {
	if language == "" {
		language = "English"
	}

	var sb strings.Builder
	sb.WriteString("You are a helpful agricultural assistant answering Indian farmers on a phone call.\n")
	sb.WriteString("You help with crop problems, pests and diseases, weather-based advice, mandi prices, input costs and government schemes.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Reply only in " + language + ".\n")
	sb.WriteString("- Your reply is read aloud, so use plain spoken sentences: no markdown, lists, emojis or URLs.\n")
	sb.WriteString("- Keep it to at most three short sentences.\n")
	sb.WriteString("- If the caller only greets you, greet them back and ask how you can help with their farm.\n")
	sb.WriteString("- If you are unsure, say so and suggest contacting the local Krishi Vigyan Kendra.\n")
	return sb.String()
}

func summaryPrompt(language string) string {
	if language == "" {
		language = "English"
	}

	var sb strings.Builder
	sb.WriteString("Summarize this phone conversation between a farmer and an agricultural assistant.\n")
	sb.WriteString("Write the summary in " + language + " as a plain-text SMS of at most three sentences.\n")
	sb.WriteString("Include the farmer's questions and the key advice given. Do not add anything that was not said.\n")
	return sb.String()
}

// transcript renders history as "Farmer: ...\nAssistant: ..." lines.
func transcript(history []session.Turn) string {
	var sb strings.Builder
	for _, t := range history {
		switch t.Role {
		case session.RoleCaller:
			sb.WriteString("Farmer: ")
		case session.RoleAssistant:
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
