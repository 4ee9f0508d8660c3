package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/OpenVisa/VisaFlow/internal/genai"
	"github.com/OpenVisa/VisaFlow/internal/models"
	"github.com/openai/openai-go"
)

// Model output sometimes arrives with its own numbering or quoting; strip it
// so the "Question i/N:" prefix stays the single source of progress info.
var (
	leadingNumbering = regexp.MustCompile(`(?i)^\s*(?:question\s*)?\d+\s*[./)\-:]*\s*\d*\s*[:.\-)]*\s*`)
	surroundingQuote = regexp.MustCompile(`^"(.*)"$`)
)

// QuestionGenerator phrases form-field questions and help text conversationally,
// with deterministic fallbacks when the reasoning capability is unavailable.
type QuestionGenerator struct {
	genaiClient genai.ClientInterface
}

// NewQuestionGenerator creates a question generator using the given reasoning client.
func NewQuestionGenerator(genaiClient genai.ClientInterface) *QuestionGenerator {
	return &QuestionGenerator{genaiClient: genaiClient}
}

// QuestionFor produces the prompt for a form field, prefixed with the
// caller's position in the form ("Question i/N: ...").
func (q *QuestionGenerator) QuestionFor(ctx context.Context, field models.Field, index, total int) string {
	prefix := fmt.Sprintf("Question %d/%d: ", index+1, total)

	prompt := fmt.Sprintf(questionPromptTemplate, field.Label, string(field.EffectiveType()))
	response, err := q.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: questionSystemPrompt, Temperature: 0.8, MaxTokens: 100})
	if err != nil {
		slog.Warn("QuestionGenerator.QuestionFor: generation failed, using fallback", "error", err, "field", field.Label)
		return prefix + fallbackQuestion(field)
	}

	question := cleanGeneratedQuestion(response)
	if question == "" {
		return prefix + fallbackQuestion(field)
	}
	return prefix + question
}

// HelpFor produces contextual guidance for the current field, triggered by a
// user help request.
func (q *QuestionGenerator) HelpFor(ctx context.Context, field models.Field, userQuestion string) string {
	prompt := fmt.Sprintf(helpPromptTemplate, field.Label, string(field.EffectiveType()), field.Description, userQuestion)
	response, err := q.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: helpSystemPrompt, Temperature: 0.7, MaxTokens: 250})
	if err != nil {
		slog.Warn("QuestionGenerator.HelpFor: generation failed, using fallback", "error", err, "field", field.Label)
		return fallbackHelp(field)
	}
	help := strings.TrimSpace(response)
	if help == "" {
		return fallbackHelp(field)
	}
	return help
}

func cleanGeneratedQuestion(raw string) string {
	question := strings.TrimSpace(raw)
	question = surroundingQuote.ReplaceAllString(question, "$1")
	question = leadingNumbering.ReplaceAllString(question, "")
	return strings.TrimSpace(question)
}

func fallbackQuestion(field models.Field) string {
	return fmt.Sprintf("Could you tell me your %s?", field.Label)
}

func fallbackHelp(field models.Field) string {
	switch field.EffectiveType() {
	case models.FieldTypeDate:
		return fmt.Sprintf("For %s, please use a date format like DD/MM/YYYY. For example: 15/06/1990.", field.Label)
	case models.FieldTypeEmail:
		return fmt.Sprintf("For %s, please provide an email address like name@example.com.", field.Label)
	case models.FieldTypePhone:
		return fmt.Sprintf("For %s, please provide a phone number with 10-15 digits, including your country code if calling from abroad.", field.Label)
	default:
		if field.Description != "" {
			return fmt.Sprintf("%s: %s", field.Label, field.Description)
		}
		return fmt.Sprintf("Please provide your %s as it appears on your official documents.", field.Label)
	}
}
