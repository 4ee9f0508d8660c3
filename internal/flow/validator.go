package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/OpenVisa/VisaFlow/internal/genai"
	"github.com/OpenVisa/VisaFlow/internal/models"
	"github.com/openai/openai-go"
)

// MinAnswerLength is the minimum answer length accepted for any field.
const MinAnswerLength = 2

var (
	emailPattern    = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.[a-zA-Z]{2,}$`)
	phoneStripChars = regexp.MustCompile(`[\s\-()+]`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
)

// dateLayouts are tried in order; the first successful parse wins, so
// ambiguous dates like 01/02/2024 resolve as day-first.
var dateLayouts = []string{
	"02/01/2006", // DD/MM/YYYY
	"01/02/2006", // MM/DD/YYYY
	"2006-01-02", // YYYY-MM-DD
	"02-01-2006", // DD-MM-YYYY
}

// validationVerdict is the JSON shape expected from the AI validation call.
type validationVerdict struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// AnswerValidator checks form answers with deterministic rules first and an
// AI judgment for free-text fields. The AI path fails open: an unreachable
// capability accepts the answer rather than trapping the user.
type AnswerValidator struct {
	genaiClient genai.ClientInterface
}

// NewAnswerValidator creates an answer validator using the given reasoning client.
func NewAnswerValidator(genaiClient genai.ClientInterface) *AnswerValidator {
	return &AnswerValidator{genaiClient: genaiClient}
}

// Validate checks an answer against its field's typed rules. It returns
// whether the answer is acceptable and, when it is not, a user-facing
// message explaining what to fix.
func (v *AnswerValidator) Validate(ctx context.Context, field models.Field, answer string) (bool, string) {
	answer = strings.TrimSpace(answer)
	if len(answer) < MinAnswerLength {
		return false, "That answer seems too short. Could you provide more detail?"
	}

	label := strings.ToLower(field.Label)
	fieldType := field.EffectiveType()

	// Date semantics apply by declared type or by label convention, so a
	// "Date of Birth" text field still gets date checks.
	if fieldType == models.FieldTypeDate || strings.Contains(label, "date") ||
		strings.Contains(label, "birth") || strings.Contains(label, "issue") ||
		strings.Contains(label, "expir") {
		return v.validateDate(label, answer)
	}

	if fieldType == models.FieldTypeEmail || strings.Contains(label, "email") {
		if !emailPattern.MatchString(answer) {
			return false, "That doesn't look like a valid email address. Please use the format name@example.com."
		}
		return true, ""
	}

	if fieldType == models.FieldTypePhone || strings.Contains(label, "phone") {
		digits := phoneStripChars.ReplaceAllString(answer, "")
		if !digitsOnly.MatchString(digits) || len(digits) < 10 || len(digits) > 15 {
			return false, "That doesn't look like a valid phone number. Please include 10-15 digits."
		}
		return true, ""
	}

	switch fieldType {
	case models.FieldTypeNumber:
		value, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			return false, "Please provide a number for this field."
		}
		if strings.Contains(label, "age") && (value < 0 || value > 120) {
			return false, "That age doesn't seem right. Please provide your actual age."
		}
		return true, ""
	}

	return v.aiValidate(ctx, field, answer)
}

// validateDate parses the answer against the supported layouts and then
// applies a semantic plausibility window chosen by the field label.
func (v *AnswerValidator) validateDate(label, answer string) (bool, string) {
	var parsed time.Time
	var ok bool
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, answer); err == nil {
			parsed = t
			ok = true
			break
		}
	}
	if !ok {
		return false, "I couldn't read that date. Please use a format like DD/MM/YYYY, for example 15/06/1990."
	}

	now := time.Now()
	switch {
	case strings.Contains(label, "birth"):
		if parsed.After(now) {
			return false, "A date of birth can't be in the future. Please check the date."
		}
		if parsed.Before(now.AddDate(-120, 0, 0)) {
			return false, "That date of birth seems too far in the past. Please check the date."
		}

	case strings.Contains(label, "issue"):
		if parsed.After(now) {
			return false, "An issue date can't be in the future. Please check the date."
		}
		if parsed.Before(now.AddDate(-50, 0, 0)) {
			return false, "That issue date seems too old. Please check the date."
		}

	case strings.Contains(label, "expir"):
		if parsed.Before(now) {
			return false, "That document appears to be expired. Please provide a future expiry date."
		}
		if parsed.After(now.AddDate(20, 0, 0)) {
			return false, "That expiry date seems too far in the future. Please check the date."
		}

	case strings.Contains(label, "travel") || strings.Contains(label, "departure") ||
		strings.Contains(label, "arrival") || strings.Contains(label, "planned"):
		if parsed.After(now.AddDate(2, 0, 0)) {
			return false, "That travel date is too far ahead. Please pick a date within the next two years."
		}
		if parsed.Before(now.AddDate(-1, 0, 0)) {
			return false, "That travel date is in the past. Please provide an upcoming date."
		}

	default:
		if parsed.Before(now.AddDate(-100, 0, 0)) || parsed.After(now.AddDate(10, 0, 0)) {
			return false, "That date seems out of range. Please check it and try again."
		}
	}

	return true, ""
}

// aiValidate asks the reasoning capability whether a free-text answer is
// plausible for the field. Any failure accepts the answer.
func (v *AnswerValidator) aiValidate(ctx context.Context, field models.Field, answer string) (bool, string) {
	prompt := fmt.Sprintf(validationPromptTemplate, field.Label, string(field.EffectiveType()), field.Description, answer)
	response, err := v.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: validationSystemPrompt, Temperature: 0.3, MaxTokens: 150})
	if err != nil {
		slog.Warn("AnswerValidator.aiValidate: validation call failed, accepting answer", "error", err, "field", field.Label)
		return true, ""
	}

	var verdict validationVerdict
	if err := json.Unmarshal([]byte(genai.ExtractJSON(response)), &verdict); err != nil {
		slog.Warn("AnswerValidator.aiValidate: unparseable verdict, accepting answer", "error", err, "field", field.Label)
		return true, ""
	}
	if !verdict.Valid {
		message := verdict.Message
		if message == "" {
			message = fmt.Sprintf("That doesn't look right for %s. Could you double-check it?", field.Label)
		}
		return false, message
	}
	return true, ""
}
