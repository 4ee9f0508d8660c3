package flow

import (
	"context"
	"testing"

	"github.com/OpenVisa/VisaFlow/internal/models"
)

func sessionWithUserMessages(messages ...string) *models.Session {
	session := models.NewSession("m1")
	for _, msg := range messages {
		session.AppendUser(msg)
		session.AppendAssistant("noted")
	}
	return session
}

func TestMatchOffTopic(t *testing.T) {
	client := &mockGenAI{responses: map[string]string{
		topicGateSystemPrompt: "NO",
	}}
	matcher := NewFormMatcher(client)

	session := sessionWithUserMessages("tell me about football", "who won the league?")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm()})
	if decision.Type != models.MatchOffTopic {
		t.Errorf("decision.Type = %v, want MatchOffTopic", decision.Type)
	}
}

func TestTopicGateFailsOpen(t *testing.T) {
	matcher := NewFormMatcher(&mockGenAI{})

	// No topic keyword, gate call fails: the conversation must still be
	// treated as on-topic and fall through to keyword matching.
	session := sessionWithUserMessages("I leave in a month", "please advise me")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm()})
	if decision.Type == models.MatchOffTopic {
		t.Error("gate failure must not classify as off-topic")
	}
}

func TestEarlyClarificationShortcut(t *testing.T) {
	matcher := NewFormMatcher(&mockGenAI{})

	session := sessionWithUserMessages("what documents do I need to apply?")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm()})
	if decision.Type != models.MatchNone {
		t.Fatalf("decision.Type = %v, want MatchNone", decision.Type)
	}
	if len(decision.MissingInfo) == 0 {
		t.Error("expected missing info questions")
	}
}

func TestEmptyCatalogReturnsNoMatch(t *testing.T) {
	matcher := NewFormMatcher(&mockGenAI{})

	session := sessionWithUserMessages("I need a visa", "traveling next month", "for tourism", "two weeks")
	decision := matcher.Match(context.Background(), session, nil)
	if decision.Type != models.MatchNone {
		t.Errorf("decision.Type = %v, want MatchNone", decision.Type)
	}
}

func TestAIMatchSingle(t *testing.T) {
	client := &mockGenAI{responses: map[string]string{
		matchSystemPrompt: `{"match_type": "SINGLE", "matched_indices": [0], "confidence": 0.9, "reasoning": "country and purpose align"}`,
	}}
	matcher := NewFormMatcher(client)

	session := sessionWithUserMessages("I want a tourist visa for Canada")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm(), secondForm()})
	if decision.Type != models.MatchSingle {
		t.Fatalf("decision.Type = %v, want MatchSingle", decision.Type)
	}
	if decision.Form == nil || decision.Form.FormID != "ca-tourist" {
		t.Errorf("form = %+v, want ca-tourist", decision.Form)
	}
}

func TestAIMatchMultiple(t *testing.T) {
	client := &mockGenAI{responses: map[string]string{
		matchSystemPrompt: `{"match_type": "MULTIPLE", "matched_indices": [0, 1], "confidence": 0.8, "reasoning": "both plausible"}`,
	}}
	matcher := NewFormMatcher(client)

	session := sessionWithUserMessages("I might study or work abroad, need a visa")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm(), secondForm()})
	if decision.Type != models.MatchMultiple {
		t.Fatalf("decision.Type = %v, want MatchMultiple", decision.Type)
	}
	if len(decision.Shortlist) != 2 {
		t.Errorf("shortlist length = %d, want 2", len(decision.Shortlist))
	}
}

func TestLowConfidenceBecomesNoMatch(t *testing.T) {
	client := &mockGenAI{responses: map[string]string{
		matchSystemPrompt: `{"match_type": "SINGLE", "matched_indices": [0], "confidence": 0.2, "reasoning": "weak signal", "missing_info": ["Which country?"]}`,
	}}
	matcher := NewFormMatcher(client)

	session := sessionWithUserMessages("I need a visa somewhere warm")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm()})
	if decision.Type != models.MatchNone {
		t.Fatalf("decision.Type = %v, want MatchNone", decision.Type)
	}
	if len(decision.MissingInfo) != 1 || decision.MissingInfo[0] != "Which country?" {
		t.Errorf("missing info = %v, want verdict's questions", decision.MissingInfo)
	}
}

func TestOutOfRangeIndexBecomesNoMatch(t *testing.T) {
	client := &mockGenAI{responses: map[string]string{
		matchSystemPrompt: `{"match_type": "SINGLE", "matched_indices": [7], "confidence": 0.9, "reasoning": "hallucinated"}`,
	}}
	matcher := NewFormMatcher(client)

	session := sessionWithUserMessages("I need a tourist visa for Canada")
	decision := matcher.Match(context.Background(), session, []models.FormTemplate{testForm()})
	if decision.Type != models.MatchNone {
		t.Errorf("decision.Type = %v, want MatchNone", decision.Type)
	}
}

func TestKeywordFallbackPrefersStrongerMatch(t *testing.T) {
	matcher := NewFormMatcher(&mockGenAI{})

	forms := []models.FormTemplate{testForm(), secondForm()}
	decision := matcher.keywordFallback("I was offered a job in germany and need a work visa", forms)
	if decision.Type != models.MatchSingle {
		t.Fatalf("decision.Type = %v, want MatchSingle", decision.Type)
	}
	if decision.Form.FormID != "de-work" {
		t.Errorf("form = %s, want de-work", decision.Form.FormID)
	}
}

func TestKeywordFallbackNoHits(t *testing.T) {
	matcher := NewFormMatcher(&mockGenAI{})

	decision := matcher.keywordFallback("completely unrelated text", []models.FormTemplate{testForm()})
	if decision.Type != models.MatchNone {
		t.Errorf("decision.Type = %v, want MatchNone", decision.Type)
	}
	if len(decision.MissingInfo) == 0 {
		t.Error("expected missing info questions")
	}
}

func TestRecommendFallsBackToFirstForm(t *testing.T) {
	matcher := NewFormMatcher(&mockGenAI{})

	shortlist := []models.FormTemplate{testForm(), secondForm()}
	recommended, message := matcher.Recommend(context.Background(), shortlist, nil)
	if recommended.FormID != "ca-tourist" {
		t.Errorf("recommended = %s, want first shortlisted form", recommended.FormID)
	}
	if message == "" {
		t.Error("expected a non-empty recommendation message")
	}
}

func TestRecommendUsesVerdictIndex(t *testing.T) {
	client := &mockGenAI{responses: map[string]string{
		recommendSystemPrompt: `{"recommended_index": 1, "explanation": "Work visa fits a job offer."}`,
	}}
	matcher := NewFormMatcher(client)

	shortlist := []models.FormTemplate{testForm(), secondForm()}
	recommended, message := matcher.Recommend(context.Background(), shortlist, nil)
	if recommended.FormID != "de-work" {
		t.Errorf("recommended = %s, want de-work", recommended.FormID)
	}
	if message == "" {
		t.Error("expected a non-empty recommendation message")
	}
}
