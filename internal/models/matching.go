// Package models defines matching decision structures shared by the flow module.
package models

// MatchType classifies the outcome of one form-matching attempt.
type MatchType string

const (
	// MatchSingle means exactly one catalog form satisfies the conversation.
	MatchSingle MatchType = "single"
	// MatchMultiple means several catalog forms are plausible and the user must choose.
	MatchMultiple MatchType = "multiple"
	// MatchNone means no catalog form could be resolved; MissingInfo lists what to ask next.
	MatchNone MatchType = "no_match"
	// MatchOffTopic means the conversation is not about visas or immigration.
	MatchOffTopic MatchType = "off_topic"
)

// MatchDecision is the transient result of the form matcher for one turn.
// It is never persisted beyond the turn that produced it.
type MatchDecision struct {
	Type        MatchType      `json:"type"`
	Form        *FormTemplate  `json:"form,omitempty"`      // set for MatchSingle
	Shortlist   []FormTemplate `json:"shortlist,omitempty"` // set for MatchMultiple
	Message     string         `json:"message,omitempty"`
	MissingInfo []string       `json:"missing_info,omitempty"` // non-empty for MatchNone
	Reasoning   string         `json:"reasoning,omitempty"`
}

// CorrectionResult describes whether a free-text message amends a prior answer.
type CorrectionResult struct {
	IsCorrection bool    `json:"is_correction"`
	Field        *Field  `json:"field,omitempty"`
	NewAnswer    string  `json:"new_answer,omitempty"`
	Confidence   float64 `json:"confidence"`
}
