// Package models defines the core data structures for VisaFlow.
//
// It includes the session record, form template catalog types, and the
// request/response types shared by the API and flow modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldType defines the kind of input a form field expects.
type FieldType string

const (
	// FieldTypeText is free-form text, the default when no type is set.
	FieldTypeText FieldType = "text"
	// FieldTypeDate expects a calendar date.
	FieldTypeDate FieldType = "date"
	// FieldTypeEmail expects an email address.
	FieldTypeEmail FieldType = "email"
	// FieldTypePhone expects a phone number.
	FieldTypePhone FieldType = "phone"
	// FieldTypeNumber expects a numeric value.
	FieldTypeNumber FieldType = "number"
	// FieldTypeSelect expects one of a fixed set of options.
	FieldTypeSelect FieldType = "select"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for an inbound chat message
	MaxMessageLength = 4096
	// MaxHistoryMessages caps stored conversation history to bound session growth
	MaxHistoryMessages = 50
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrFormNotFound    = errors.New("form not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoMoreFields    = errors.New("no more fields to fill")
)

// Field is one question/input slot within a form template.
type Field struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
}

// EffectiveType returns the field's type, defaulting to text when unset.
func (f Field) EffectiveType() FieldType {
	if f.Type == "" {
		return FieldTypeText
	}
	return f.Type
}

// FormTemplate is a catalog entry describing a visa application form and its
// ordered field list. Templates are produced by the out-of-scope ingestion
// pipeline; the core only reads them.
type FormTemplate struct {
	FormID          string    `json:"form_id"`
	Title           string    `json:"title"`
	VisaType        string    `json:"visa_type"`
	Country         string    `json:"country"`
	PurposeKeywords []string  `json:"purpose_keywords,omitempty"`
	Fields          []Field   `json:"fields"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Validate checks that a form template has the members the core relies on.
func (f FormTemplate) Validate() error {
	if f.FormID == "" {
		return errors.New("form_id is required")
	}
	if f.Title == "" {
		return errors.New("title is required")
	}
	if len(f.Fields) == 0 {
		return errors.New("form must define at least one field")
	}
	seen := make(map[string]bool, len(f.Fields))
	for i, fld := range f.Fields {
		if fld.ID == "" {
			return fmt.Errorf("field %d is missing an id", i)
		}
		if fld.Label == "" {
			return fmt.Errorf("field %q is missing a label", fld.ID)
		}
		if seen[fld.ID] {
			return fmt.Errorf("duplicate field id %q", fld.ID)
		}
		seen[fld.ID] = true
	}
	return nil
}

// Summary returns the compact representation of a form sent to API callers.
func (f FormTemplate) Summary() *FormSummary {
	return &FormSummary{
		FormID:      f.FormID,
		Title:       f.Title,
		VisaType:    f.VisaType,
		Country:     f.Country,
		TotalFields: len(f.Fields),
	}
}

// FormSummary is the compact form descriptor included in chat responses.
type FormSummary struct {
	FormID      string `json:"form_id"`
	Title       string `json:"title"`
	VisaType    string `json:"visa_type"`
	Country     string `json:"country"`
	TotalFields int    `json:"total_fields"`
}

// Answer holds one accepted answer for a form field, keyed by field id in the
// session's answer map.
type Answer struct {
	Label     string    `json:"label"`
	Answer    string    `json:"answer"`
	FieldType FieldType `json:"field_type"`
	Updated   bool      `json:"updated,omitempty"`
}

// ConversationMessage represents a single message in the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // message content
	Timestamp time.Time `json:"timestamp"` // when the message was sent
}

// Session is the persisted state of one user's ongoing conversation.
type Session struct {
	SessionID         string                `json:"session_id"`
	State             SessionState          `json:"state"`
	History           []ConversationMessage `json:"history"`
	MatchedFormID     string                `json:"matched_form_id,omitempty"`
	RecommendedForm   *FormTemplate         `json:"recommended_form,omitempty"`
	MultipleForms     []FormTemplate        `json:"multiple_matched_forms,omitempty"`
	CurrentFieldIndex int                   `json:"current_field_index"`
	Answers           map[string]Answer     `json:"answers"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// NewSession returns a freshly-initialized session record in the chatting state.
func NewSession(sessionID string) *Session {
	now := time.Now()
	return &Session{
		SessionID: sessionID,
		State:     StateChatting,
		History:   []ConversationMessage{},
		Answers:   map[string]Answer{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears the session back to its initial chatting state without
// removing the record.
func (s *Session) Reset() {
	s.State = StateChatting
	s.History = []ConversationMessage{}
	s.MatchedFormID = ""
	s.RecommendedForm = nil
	s.MultipleForms = nil
	s.CurrentFieldIndex = 0
	s.Answers = map[string]Answer{}
}

// AppendUser adds a user turn to the session history.
func (s *Session) AppendUser(content string) {
	s.History = append(s.History, ConversationMessage{Role: "user", Content: content, Timestamp: time.Now()})
}

// AppendAssistant adds an assistant turn to the session history.
func (s *Session) AppendAssistant(content string) {
	s.History = append(s.History, ConversationMessage{Role: "assistant", Content: content, Timestamp: time.Now()})
}

// UserTurnCount returns the number of user messages in the history.
func (s *Session) UserTurnCount() int {
	count := 0
	for _, m := range s.History {
		if m.Role == "user" {
			count++
		}
	}
	return count
}

// ChatRequest is the inbound payload for one conversation turn.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// Validate checks the chat request payload.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the per-turn contract returned to the API caller.
type ChatResponse struct {
	SessionID     string         `json:"session_id"`
	Message       string         `json:"message"`
	State         SessionState   `json:"state"`
	IsFormReady   bool           `json:"is_form_ready"`
	MatchedForm   *FormSummary   `json:"matched_form,omitempty"`
	MultipleForms []FormTemplate `json:"multiple_forms,omitempty"`
}

// SummaryResponse is returned by the session summary endpoint.
type SummaryResponse struct {
	SessionID        string            `json:"session_id"`
	FormTitle        string            `json:"form_title"`
	VisaType         string            `json:"visa_type"`
	Country          string            `json:"country"`
	Answers          map[string]Answer `json:"answers"`
	AnsweredFields   int               `json:"answered_fields"`
	TotalFields      int               `json:"total_fields"`
	CompletionStatus SessionState      `json:"completion_status"`
}

// APIResponse provides a consistent envelope for non-chat API endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with a result payload.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage creates a successful API response with a message and result.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
