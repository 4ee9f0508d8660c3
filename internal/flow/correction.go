package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OpenVisa/VisaFlow/internal/genai"
	"github.com/OpenVisa/VisaFlow/internal/models"
	"github.com/openai/openai-go"
)

// MinCorrectionConfidence is the floor below which a detected correction is
// discarded. Corrections destroy recorded answers, so the bar sits higher
// than for matching.
const MinCorrectionConfidence = 0.7

// correctionKeywords trigger the cheap pre-screen before any reasoning call.
var correctionKeywords = []string{
	"sorry", "actually", "wait", "mistake", "wrong", "change", "update", "fix",
	"meant to say", "i mean", "should be", "my bad", "oops", "correction",
	"not right", "incorrect", "error",
}

// correctionVerdict is the JSON shape expected from the correction analysis call.
type correctionVerdict struct {
	IsCorrection bool    `json:"is_correction"`
	FieldID      string  `json:"field_id"`
	FieldLabel   string  `json:"field_label"`
	NewAnswer    string  `json:"new_answer"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// CorrectionDetector decides whether a message during form filling revises a
// previously recorded answer rather than answering the current question.
type CorrectionDetector struct {
	genaiClient genai.ClientInterface
}

// NewCorrectionDetector creates a correction detector using the given reasoning client.
func NewCorrectionDetector(genaiClient genai.ClientInterface) *CorrectionDetector {
	return &CorrectionDetector{genaiClient: genaiClient}
}

// Detect analyzes the message against the session's answered fields. The
// result is a correction only when the screen fires, the reasoning verdict
// clears the confidence floor, the named field resolves to an answered field,
// and the replacement answer is non-empty. Any failure means not-a-correction.
func (d *CorrectionDetector) Detect(ctx context.Context, session *models.Session, form *models.FormTemplate, message string) models.CorrectionResult {
	notCorrection := models.CorrectionResult{IsCorrection: false}
	if len(session.Answers) == 0 {
		return notCorrection
	}
	if !d.screen(session, form, message) {
		return notCorrection
	}

	answered := answeredFields(session, form)
	answeredJSON, err := json.MarshalIndent(answered, "", "  ")
	if err != nil {
		slog.Warn("CorrectionDetector.Detect: failed to marshal answered fields", "error", err)
		return notCorrection
	}

	recentUser := userTexts(session.History)
	if len(recentUser) > 3 {
		recentUser = recentUser[len(recentUser)-3:]
	}

	prompt := fmt.Sprintf(correctionPromptTemplate, message, strings.Join(recentUser, "\n"), string(answeredJSON))
	response, err := d.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: correctionSystemPrompt, Temperature: 0.2, MaxTokens: 300})
	if err != nil {
		slog.Warn("CorrectionDetector.Detect: analysis call failed, treating as answer", "error", err, "sessionID", session.SessionID)
		return notCorrection
	}

	var verdict correctionVerdict
	if err := json.Unmarshal([]byte(genai.ExtractJSON(response)), &verdict); err != nil {
		slog.Warn("CorrectionDetector.Detect: unparseable verdict, treating as answer", "error", err, "sessionID", session.SessionID)
		return notCorrection
	}
	if !verdict.IsCorrection || verdict.Confidence < MinCorrectionConfidence {
		return notCorrection
	}

	field := resolveField(form, session, verdict.FieldID, verdict.FieldLabel)
	if field == nil {
		slog.Debug("CorrectionDetector.Detect: verdict names an unanswered field, ignoring",
			"fieldID", verdict.FieldID, "fieldLabel", verdict.FieldLabel)
		return notCorrection
	}
	newAnswer := strings.TrimSpace(verdict.NewAnswer)
	if newAnswer == "" {
		return notCorrection
	}

	slog.Info("CorrectionDetector.Detect: correction accepted",
		"sessionID", session.SessionID, "fieldID", field.ID, "confidence", verdict.Confidence)
	return models.CorrectionResult{
		IsCorrection: true,
		Field:        field,
		NewAnswer:    newAnswer,
		Confidence:   verdict.Confidence,
	}
}

// screen is the keyword pre-screen: a correction phrase, or a verbatim
// mention of an already-answered field's label.
func (d *CorrectionDetector) screen(session *models.Session, form *models.FormTemplate, message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range correctionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if form == nil {
		return false
	}
	for _, field := range form.Fields {
		if _, ok := session.Answers[field.ID]; !ok {
			continue
		}
		label := strings.ToLower(field.Label)
		if len(label) >= 4 && strings.Contains(lower, label) {
			return true
		}
	}
	return false
}

// answeredField is the compact per-field record handed to the reasoning call.
type answeredField struct {
	FieldID       string `json:"field_id"`
	FieldLabel    string `json:"field_label"`
	CurrentAnswer string `json:"current_answer"`
}

func answeredFields(session *models.Session, form *models.FormTemplate) []answeredField {
	var fields []answeredField
	if form == nil {
		return fields
	}
	for _, field := range form.Fields {
		if answer, ok := session.Answers[field.ID]; ok {
			fields = append(fields, answeredField{
				FieldID:       field.ID,
				FieldLabel:    field.Label,
				CurrentAnswer: answer.Answer,
			})
		}
	}
	return fields
}

// resolveField resolves a verdict's field reference against the form's
// answered fields, matching by ID first and label second.
func resolveField(form *models.FormTemplate, session *models.Session, fieldID, fieldLabel string) *models.Field {
	if form == nil {
		return nil
	}
	for i, field := range form.Fields {
		if _, ok := session.Answers[field.ID]; !ok {
			continue
		}
		if field.ID == fieldID {
			return &form.Fields[i]
		}
	}
	if fieldLabel == "" {
		return nil
	}
	lowerLabel := strings.ToLower(fieldLabel)
	for i, field := range form.Fields {
		if _, ok := session.Answers[field.ID]; !ok {
			continue
		}
		if strings.ToLower(field.Label) == lowerLabel {
			return &form.Fields[i]
		}
	}
	return nil
}
