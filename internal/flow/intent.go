// Package flow implements the VisaFlow conversation engine.
//
// This file holds the closed-vocabulary intent classification shared by the
// confirmation, form-matched, and completed states, plus the help-request
// heuristic used while filling a form.
package flow

import "strings"

// Intent is the result of classifying a short user reply against the closed
// affirmative/negative vocabularies.
type Intent int

const (
	// IntentUnclear means neither vocabulary matched; the caller should fall
	// through to open conversation and steer back to a decision.
	IntentUnclear Intent = iota
	// IntentAffirmative means the user agreed / wants to proceed.
	IntentAffirmative
	// IntentNegative means the user declined.
	IntentNegative
)

// Closed vocabularies for intent classification. Matching is case-insensitive
// substring match; affirmative is checked first, so "sure" wins over the
// "not" inside "not sure yet" the same way the decision states expect.
var (
	affirmativeWords = []string{"yes", "ok", "okay", "sure", "start", "begin", "continue", "proceed", "correct", "ready", "let's"}
	negativeWords    = []string{"no", "not", "don't", "dont", "cancel", "stop", "maybe later", "not now"}
	newFormWords     = []string{"another", "new", "different", "next", "more"}
)

// ClassifyIntent classifies a reply as affirmative, negative, or unclear.
func ClassifyIntent(message string) Intent {
	lower := strings.ToLower(message)
	for _, word := range affirmativeWords {
		if strings.Contains(lower, word) {
			return IntentAffirmative
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			return IntentNegative
		}
	}
	return IntentUnclear
}

// WantsNewForm reports whether a reply in the completed state asks to start
// over with another form.
func WantsNewForm(message string) bool {
	lower := strings.ToLower(message)
	for _, word := range newFormWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// Phrases that express consultation uncertainty rather than a help request.
var consultationPhrases = []string{
	"i'm not sure",
	"im not sure",
	"not sure yet",
	"don't know yet",
	"dont know yet",
	"maybe",
	"thinking about",
	"possibly",
	"probably",
}

// Phrases that open an explicit help request.
var helpStarters = []string{
	"help",
	"i need help",
	"can you help",
	"could you help",
	"help me",
	"how do i",
	"how should i",
	"how to",
	"what do i",
	"what should i",
	"i don't know how",
	"i dont know how",
	"i don't understand",
	"i dont understand",
	"confused",
	"example",
	"give me an example",
	"show me",
	"can you explain",
	"what does this mean",
	"i'm confused",
	"im confused",
}

// Keywords that mark a short message as a help request.
var helpKeywords = []string{
	"help me",
	"how should",
	"what should",
	"confused",
	"example",
	"show me",
	"explain",
	"don't know",
	"dont know",
	"not sure how",
	"how do",
}

// IsHelpRequest reports whether a message during form filling asks for
// guidance rather than answering the current field. Long messages without
// clear help keywords are treated as answers.
func IsHelpRequest(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	words := strings.Fields(lower)

	// Short expressions of uncertainty are consultation talk, not help requests.
	for _, phrase := range consultationPhrases {
		if strings.Contains(lower, phrase) && len(words) < 10 {
			return false
		}
	}

	for _, starter := range helpStarters {
		if strings.HasPrefix(lower, starter) {
			return true
		}
	}

	if len(words) <= 15 {
		for _, kw := range helpKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}

	if strings.Contains(message, "?") && len(words) <= 12 {
		for _, word := range []string{"how", "what", "help", "explain", "mean"} {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}

	return false
}
