package models

import (
	"errors"
	"strings"
	"testing"
)

func TestIsValidSessionState(t *testing.T) {
	for _, state := range []SessionState{StateChatting, StateFormMatched, StateAwaitingConfirmation, StateFillingForm, StateCompleted} {
		if !IsValidSessionState(state) {
			t.Errorf("IsValidSessionState(%s) = false, want true", state)
		}
	}
	if IsValidSessionState(SessionState("paused")) {
		t.Error("unknown state accepted")
	}
}

func TestFieldEffectiveType(t *testing.T) {
	if got := (Field{ID: "x", Label: "X"}).EffectiveType(); got != FieldTypeText {
		t.Errorf("EffectiveType() = %s, want text", got)
	}
	if got := (Field{ID: "x", Label: "X", Type: FieldTypeDate}).EffectiveType(); got != FieldTypeDate {
		t.Errorf("EffectiveType() = %s, want date", got)
	}
}

func TestFormTemplateValidate(t *testing.T) {
	valid := FormTemplate{
		FormID: "f1",
		Title:  "Test Form",
		Fields: []Field{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name string
		form FormTemplate
	}{
		{"missing form id", FormTemplate{Title: "T", Fields: []Field{{ID: "a", Label: "A"}}}},
		{"missing title", FormTemplate{FormID: "f1", Fields: []Field{{ID: "a", Label: "A"}}}},
		{"no fields", FormTemplate{FormID: "f1", Title: "T"}},
		{"field without id", FormTemplate{FormID: "f1", Title: "T", Fields: []Field{{Label: "A"}}}},
		{"field without label", FormTemplate{FormID: "f1", Title: "T", Fields: []Field{{ID: "a"}}}},
		{"duplicate field ids", FormTemplate{FormID: "f1", Title: "T", Fields: []Field{{ID: "a", Label: "A"}, {ID: "a", Label: "B"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.form.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestChatRequestValidate(t *testing.T) {
	if err := (ChatRequest{Message: "hello"}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (ChatRequest{Message: "   "}).Validate(); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Validate() = %v, want ErrEmptyMessage", err)
	}
	long := strings.Repeat("x", MaxMessageLength+1)
	if err := (ChatRequest{Message: long}).Validate(); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("Validate() = %v, want ErrMessageTooLong", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("s1")
	if s.State != StateChatting {
		t.Errorf("new session state = %s, want chatting", s.State)
	}

	s.AppendUser("hello")
	s.AppendAssistant("hi there")
	s.AppendUser("I need a visa")
	if got := s.UserTurnCount(); got != 2 {
		t.Errorf("UserTurnCount() = %d, want 2", got)
	}

	s.State = StateFillingForm
	s.MatchedFormID = "f1"
	s.CurrentFieldIndex = 3
	s.Answers["a"] = Answer{Label: "A", Answer: "x"}
	s.Reset()

	if s.State != StateChatting || s.MatchedFormID != "" || s.CurrentFieldIndex != 0 {
		t.Errorf("Reset left progress behind: %+v", s)
	}
	if len(s.History) != 0 || len(s.Answers) != 0 {
		t.Error("Reset must clear history and answers")
	}
	if s.SessionID != "s1" {
		t.Error("Reset must keep the session id")
	}
}

func TestFormSummary(t *testing.T) {
	form := FormTemplate{
		FormID:   "f1",
		Title:    "Test Form",
		VisaType: "Tourist",
		Country:  "Canada",
		Fields:   []Field{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
	}
	summary := form.Summary()
	if summary.TotalFields != 2 || summary.FormID != "f1" || summary.Country != "Canada" {
		t.Errorf("Summary() = %+v", summary)
	}
}
