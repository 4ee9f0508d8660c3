// Package models defines session state structures for VisaFlow conversations.
package models

// SessionState represents the current phase of a visa consultation session.
type SessionState string

const (
	// StateChatting is the initial open-conversation phase before a form is matched.
	StateChatting SessionState = "chatting"
	// StateFormMatched means a single form is locked in, awaiting the user's go-ahead.
	StateFormMatched SessionState = "form_matched"
	// StateAwaitingConfirmation means an AI-ranked shortlist is pending the user's choice.
	StateAwaitingConfirmation SessionState = "awaiting_confirmation"
	// StateFillingForm means the user is answering the matched form's fields in order.
	StateFillingForm SessionState = "filling_form"
	// StateCompleted means every field of the matched form has an accepted answer.
	StateCompleted SessionState = "completed"
)

// IsValidSessionState checks if the given state is one of the defined session states.
func IsValidSessionState(s SessionState) bool {
	switch s {
	case StateChatting, StateFormMatched, StateAwaitingConfirmation, StateFillingForm, StateCompleted:
		return true
	default:
		return false
	}
}
