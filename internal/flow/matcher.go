// Package flow implements the VisaFlow conversation engine.
//
// This file implements the form matcher: a two-tier topic gate, an early
// clarification shortcut, AI-driven catalog classification, and a
// deterministic keyword fallback for capability failures.
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

// Matching thresholds and limits
const (
	// MinMatchConfidence is the floor below which any AI match verdict is
	// treated as no match.
	MinMatchConfidence = 0.4
	// EarlyClarificationMaxTurns bounds the conversation length for the
	// early clarification shortcut.
	EarlyClarificationMaxTurns = 3

	// Keyword fallback scoring weights.
	countryScore = 5
	visaScore    = 3
	keywordScore = 1
)

// Tier-1 topic allow-list: any hit short-circuits the off-topic check
// without a reasoning call. Hits are substring matches on lowercased text.
var topicKeywords = []string{
	"visa", "immigration", "immigrate", "passport", "travel", "trip", "abroad",
	"embassy", "consulate", "application", "apply", "form", "document", "permit",
	"residence", "citizenship", "sponsor", "study", "student", "tourist", "work",
	"business", "visit", "migration", "green card", "schengen",
}

// Broad country-name list for the tier-1 gate and the early clarification
// shortcut. Lowercased; substring match.
var countryKeywords = []string{
	"usa", "united states", "america", "canada", "uk", "united kingdom", "britain",
	"england", "australia", "new zealand", "germany", "france", "italy", "spain",
	"portugal", "netherlands", "belgium", "switzerland", "austria", "sweden",
	"norway", "denmark", "finland", "ireland", "poland", "czech", "hungary",
	"greece", "turkey", "russia", "china", "japan", "korea", "india", "pakistan",
	"bangladesh", "sri lanka", "nepal", "thailand", "vietnam", "malaysia",
	"singapore", "indonesia", "philippines", "uae", "dubai", "saudi", "qatar",
	"kuwait", "bahrain", "oman", "egypt", "morocco", "south africa", "kenya",
	"nigeria", "ghana", "brazil", "argentina", "mexico", "chile", "colombia",
	"peru",
}

// Visa-type vocabulary used by the early clarification shortcut.
var visaTypeKeywords = []string{
	"student", "tourist", "work", "business", "visit", "family", "transit",
	"medical", "study", "spouse", "dependent",
}

// Document-question vocabulary for the early clarification shortcut.
var documentQuestionKeywords = []string{
	"document", "documents", "file", "files", "paper", "papers", "require",
	"required", "requirement", "need to submit", "upload",
}

// matchVerdict is the JSON shape expected from the catalog classification call.
type matchVerdict struct {
	MatchType      string   `json:"match_type"`
	MatchedIndices []int    `json:"matched_indices"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	MissingInfo    []string `json:"missing_info"`
}

// recommendVerdict is the JSON shape expected from the shortlist ranking call.
type recommendVerdict struct {
	RecommendedIndex int    `json:"recommended_index"`
	Explanation      string `json:"explanation"`
}

// FormMatcher decides which catalog forms (if any) satisfy the conversation.
type FormMatcher struct {
	genaiClient genai.ClientInterface
}

// NewFormMatcher creates a form matcher using the given reasoning client.
func NewFormMatcher(genaiClient genai.ClientInterface) *FormMatcher {
	return &FormMatcher{genaiClient: genaiClient}
}

// Match evaluates the session's conversation against the form catalog and
// returns a matching decision for this turn.
func (m *FormMatcher) Match(ctx context.Context, session *models.Session, forms []models.FormTemplate) models.MatchDecision {
	userMessages := userTexts(session.History)
	conversationText := strings.Join(userMessages, " ")

	// Step 1: two-tier topic gate.
	if !m.isOnTopic(ctx, userMessages) {
		slog.Debug("FormMatcher.Match: conversation off-topic", "sessionID", session.SessionID)
		return models.MatchDecision{
			Type:    models.MatchOffTopic,
			Message: "I'm specialized in visa applications. How can I help with your visa needs?",
		}
	}

	// Step 2: early clarification shortcut. A short conversation asking about
	// required documents with no country or visa type named cannot produce a
	// confident match; ask for the missing facts instead of burning a call.
	if m.needsEarlyClarification(session, userMessages) {
		slog.Debug("FormMatcher.Match: early clarification shortcut", "sessionID", session.SessionID)
		return models.MatchDecision{
			Type:    models.MatchNone,
			Message: "Happy to help with the required documents! First I need to know a bit more.",
			MissingInfo: []string{
				"Which country are you planning to visit?",
				"What's the purpose of your visit?",
			},
		}
	}

	if len(forms) == 0 {
		slog.Warn("FormMatcher.Match: form catalog is empty", "sessionID", session.SessionID)
		return models.MatchDecision{
			Type:    models.MatchNone,
			Message: "I don't have any visa forms available right now. Please check back soon.",
			MissingInfo: []string{
				"Which country are you applying to?",
				"What type of visa do you need?",
			},
		}
	}

	// Step 3: AI catalog classification, with deterministic fallback on
	// capability failure.
	decision, err := m.aiMatch(ctx, conversationText, forms)
	if err != nil {
		slog.Warn("FormMatcher.Match: AI matching failed, using keyword fallback", "error", err, "sessionID", session.SessionID)
		return m.keywordFallback(conversationText, forms)
	}
	return decision
}

// isOnTopic runs the two-tier off-topic check over recent user messages.
// Tier 1 is the static keyword allow-list; tier 2 asks the reasoning
// capability a closed yes/no question. Tier 2 fails open.
func (m *FormMatcher) isOnTopic(ctx context.Context, userMessages []string) bool {
	recent := userMessages
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	recentText := strings.ToLower(strings.Join(recent, " "))

	for _, kw := range topicKeywords {
		if strings.Contains(recentText, kw) {
			return true
		}
	}
	for _, country := range countryKeywords {
		if strings.Contains(recentText, country) {
			return true
		}
	}

	prompt := fmt.Sprintf(topicGatePromptTemplate, strings.Join(recent, " "))
	response, err := m.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: topicGateSystemPrompt, Temperature: 0.3, MaxTokens: 5})
	if err != nil {
		// Fail open: never block a legitimate visa question on an
		// infrastructure hiccup.
		slog.Warn("FormMatcher.isOnTopic: classification failed, defaulting to on-topic", "error", err)
		return true
	}
	return strings.Contains(strings.ToUpper(response), "YES")
}

// needsEarlyClarification reports whether the conversation is too short and
// unspecific for matching: at most EarlyClarificationMaxTurns user turns, the
// latest message asks about documents, and no country or visa type appears
// anywhere in the conversation.
func (m *FormMatcher) needsEarlyClarification(session *models.Session, userMessages []string) bool {
	if len(userMessages) == 0 || len(userMessages) > EarlyClarificationMaxTurns {
		return false
	}
	latest := strings.ToLower(userMessages[len(userMessages)-1])
	asksAboutDocuments := false
	for _, kw := range documentQuestionKeywords {
		if strings.Contains(latest, kw) {
			asksAboutDocuments = true
			break
		}
	}
	if !asksAboutDocuments {
		return false
	}
	allText := strings.ToLower(strings.Join(userMessages, " "))
	for _, country := range countryKeywords {
		if strings.Contains(allText, country) {
			return false
		}
	}
	for _, vt := range visaTypeKeywords {
		if strings.Contains(allText, vt) {
			return false
		}
	}
	return true
}

// aiMatch asks the reasoning capability to classify the conversation against
// a compact catalog summary. Malformed output is returned as an error so the
// caller can fall back to keyword scoring.
func (m *FormMatcher) aiMatch(ctx context.Context, conversationText string, forms []models.FormTemplate) (models.MatchDecision, error) {
	type formSummary struct {
		Index       int    `json:"index"`
		FormID      string `json:"form_id"`
		Title       string `json:"title"`
		VisaType    string `json:"visa_type"`
		Country     string `json:"country"`
		Description string `json:"description"`
	}
	summaries := make([]formSummary, 0, len(forms))
	for i, form := range forms {
		summaries = append(summaries, formSummary{
			Index:       i,
			FormID:      form.FormID,
			Title:       form.Title,
			VisaType:    form.VisaType,
			Country:     form.Country,
			Description: fmt.Sprintf("%s visa for %s", form.VisaType, form.Country),
		})
	}
	summaryJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return models.MatchDecision{}, fmt.Errorf("failed to marshal form summaries: %w", err)
	}

	prompt := fmt.Sprintf(matchPromptTemplate, conversationText, string(summaryJSON))
	response, err := m.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: matchSystemPrompt, Temperature: 0.3, MaxTokens: 400})
	if err != nil {
		return models.MatchDecision{}, fmt.Errorf("matching call failed: %w", err)
	}

	var verdict matchVerdict
	if err := json.Unmarshal([]byte(genai.ExtractJSON(response)), &verdict); err != nil {
		return models.MatchDecision{}, fmt.Errorf("unparseable matching verdict: %w", err)
	}
	slog.Debug("FormMatcher.aiMatch: verdict received",
		"matchType", verdict.MatchType, "confidence", verdict.Confidence, "indices", verdict.MatchedIndices)

	if verdict.MatchType == "NO_MATCH" || verdict.Confidence < MinMatchConfidence {
		return m.noMatchDecision(verdict), nil
	}

	switch verdict.MatchType {
	case "MULTIPLE":
		var shortlist []models.FormTemplate
		for _, idx := range verdict.MatchedIndices {
			if idx >= 0 && idx < len(forms) {
				shortlist = append(shortlist, forms[idx])
			}
		}
		if len(shortlist) == 0 {
			return m.noMatchDecision(verdict), nil
		}
		return models.MatchDecision{
			Type:      models.MatchMultiple,
			Shortlist: shortlist,
			Reasoning: verdict.Reasoning,
		}, nil

	case "SINGLE":
		if len(verdict.MatchedIndices) == 0 || verdict.MatchedIndices[0] < 0 || verdict.MatchedIndices[0] >= len(forms) {
			return m.noMatchDecision(verdict), nil
		}
		form := forms[verdict.MatchedIndices[0]]
		return models.MatchDecision{
			Type:      models.MatchSingle,
			Form:      &form,
			Reasoning: verdict.Reasoning,
		}, nil

	default:
		return m.noMatchDecision(verdict), nil
	}
}

// noMatchDecision builds a no-match decision carrying a non-empty list of
// missing facts for the caller to elicit next turn.
func (m *FormMatcher) noMatchDecision(verdict matchVerdict) models.MatchDecision {
	missing := verdict.MissingInfo
	if len(missing) == 0 {
		missing = []string{
			"Which country are you planning to visit?",
			"What's the purpose of your visit?",
		}
	}
	return models.MatchDecision{
		Type:        models.MatchNone,
		Message:     "I understand you need a visa, but I need a bit more information to find the perfect form for you.",
		MissingInfo: missing,
		Reasoning:   verdict.Reasoning,
	}
}

// keywordFallback scores each form deterministically when the reasoning
// capability is unavailable: +5 for a verbatim country hit, +3 for the visa
// type, +1 per purpose keyword. Highest score wins; ties keep catalog order.
func (m *FormMatcher) keywordFallback(conversationText string, forms []models.FormTemplate) models.MatchDecision {
	lower := strings.ToLower(conversationText)

	bestScore := 0
	bestIndex := -1
	for i, form := range forms {
		score := 0
		if country := strings.ToLower(form.Country); country != "" && strings.Contains(lower, country) {
			score += countryScore
		}
		if visaType := strings.ToLower(form.VisaType); visaType != "" && strings.Contains(lower, visaType) {
			score += visaScore
		}
		for _, kw := range form.PurposeKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score += keywordScore
			}
		}
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if bestIndex < 0 {
		return models.MatchDecision{
			Type:    models.MatchNone,
			Message: "I couldn't find a suitable visa form. Please tell me which country and visa type you need.",
			MissingInfo: []string{
				"Which country are you applying to?",
				"What type of visa do you need?",
			},
		}
	}

	form := forms[bestIndex]
	slog.Debug("FormMatcher.keywordFallback: matched", "formID", form.FormID, "score", bestScore)
	return models.MatchDecision{
		Type:      models.MatchSingle,
		Form:      &form,
		Reasoning: fmt.Sprintf("keyword fallback match with score %d", bestScore),
	}
}

// Recommend ranks a shortlist of matched forms and returns the recommended
// form plus a user-facing message. A failed ranking call deterministically
// recommends the first shortlisted form.
func (m *FormMatcher) Recommend(ctx context.Context, shortlist []models.FormTemplate, history []models.ConversationMessage) (*models.FormTemplate, string) {
	conversationText := strings.Join(userTexts(history), " ")

	var listing strings.Builder
	for i, form := range shortlist {
		fmt.Fprintf(&listing, "%d. %s - %s (%s)\n", i+1, form.Title, form.VisaType, form.Country)
	}

	prompt := fmt.Sprintf(recommendPromptTemplate, conversationText, listing.String())
	response, err := m.genaiClient.Complete(ctx,
		[]openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		genai.CompletionOpts{SystemPrompt: recommendSystemPrompt, Temperature: 0.6, MaxTokens: 300})
	if err == nil {
		var verdict recommendVerdict
		if jsonErr := json.Unmarshal([]byte(genai.ExtractJSON(response)), &verdict); jsonErr == nil {
			if verdict.RecommendedIndex >= 0 && verdict.RecommendedIndex < len(shortlist) {
				recommended := shortlist[verdict.RecommendedIndex]
				message := fmt.Sprintf("I found %d possible forms. I recommend: %s, %s visa for %s. %s Is this correct? Say 'Yes' to proceed!",
					len(shortlist), recommended.Title, recommended.VisaType, recommended.Country, verdict.Explanation)
				return &recommended, message
			}
		} else {
			slog.Warn("FormMatcher.Recommend: unparseable recommendation", "error", jsonErr)
		}
	} else {
		slog.Warn("FormMatcher.Recommend: recommendation call failed", "error", err)
	}

	// Deterministic fallback: first shortlisted form.
	recommended := shortlist[0]
	message := fmt.Sprintf("I found %d matching forms. I recommend: %s, %s for %s. This matches your needs best. Say 'Yes' to proceed!",
		len(shortlist), recommended.Title, recommended.VisaType, recommended.Country)
	return &recommended, message
}

// userTexts extracts the user-side contents of a conversation history.
func userTexts(history []models.ConversationMessage) []string {
	var texts []string
	for _, msg := range history {
		if msg.Role == "user" {
			texts = append(texts, msg.Content)
		}
	}
	return texts
}
