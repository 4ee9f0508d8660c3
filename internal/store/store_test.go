package store

import (
	"testing"
	"time"

	"github.com/OpenVisa/VisaFlow/internal/models"
)

func sampleForm(id, country string) models.FormTemplate {
	return models.FormTemplate{
		FormID:   id,
		Title:    "Sample Form " + id,
		VisaType: "Tourist",
		Country:  country,
		Fields:   []models.Field{{ID: "full_name", Label: "Full Name"}},
	}
}

func TestInMemoryLoadSessionReturnsFreshRecord(t *testing.T) {
	st := NewInMemoryStore()

	session, err := st.LoadSession("missing")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if session.SessionID != "missing" || session.State != models.StateChatting {
		t.Errorf("fresh session = %+v", session)
	}
	if session.Answers == nil {
		t.Error("fresh session must have an initialized answer map")
	}
}

func TestInMemorySaveSessionRoundTrip(t *testing.T) {
	st := NewInMemoryStore()

	session := models.NewSession("s1")
	session.State = models.StateFillingForm
	session.MatchedFormID = "f1"
	session.CurrentFieldIndex = 2
	session.Answers["full_name"] = models.Answer{Label: "Full Name", Answer: "Jane Smith"}
	session.AppendUser("hello")

	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	loaded, err := st.LoadSession("s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.State != models.StateFillingForm || loaded.MatchedFormID != "f1" || loaded.CurrentFieldIndex != 2 {
		t.Errorf("loaded session = %+v", loaded)
	}
	if loaded.Answers["full_name"].Answer != "Jane Smith" {
		t.Errorf("answers = %+v", loaded.Answers)
	}
	if len(loaded.History) != 1 {
		t.Errorf("history length = %d, want 1", len(loaded.History))
	}
}

func TestInMemorySaveSessionRefreshesUpdatedAt(t *testing.T) {
	st := NewInMemoryStore()

	session := models.NewSession("s1")
	stale := time.Now().Add(-time.Hour)
	session.UpdatedAt = stale
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := st.LoadSession("s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if !loaded.UpdatedAt.After(stale) {
		t.Errorf("UpdatedAt = %v, want refreshed past %v", loaded.UpdatedAt, stale)
	}
}

func TestInMemorySaveSessionUpserts(t *testing.T) {
	st := NewInMemoryStore()

	session := models.NewSession("s1")
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	session.State = models.StateCompleted
	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("second SaveSession failed: %v", err)
	}

	loaded, err := st.LoadSession("s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.State != models.StateCompleted {
		t.Errorf("state = %s, want completed", loaded.State)
	}
}

func TestInMemoryFormCatalog(t *testing.T) {
	st := NewInMemoryStore()

	if err := st.SaveForm(sampleForm("f1", "Canada")); err != nil {
		t.Fatalf("SaveForm failed: %v", err)
	}
	if err := st.SaveForm(sampleForm("f2", "Germany")); err != nil {
		t.Fatalf("SaveForm failed: %v", err)
	}

	forms, err := st.ListForms()
	if err != nil {
		t.Fatalf("ListForms failed: %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("ListForms returned %d forms, want 2", len(forms))
	}
	if forms[0].FormID != "f1" || forms[1].FormID != "f2" {
		t.Errorf("forms out of insertion order: %s, %s", forms[0].FormID, forms[1].FormID)
	}

	form, err := st.GetForm("f2")
	if err != nil {
		t.Fatalf("GetForm failed: %v", err)
	}
	if form == nil || form.Country != "Germany" {
		t.Errorf("GetForm(f2) = %+v", form)
	}

	missing, err := st.GetForm("nope")
	if err != nil {
		t.Fatalf("GetForm for missing id failed: %v", err)
	}
	if missing != nil {
		t.Errorf("GetForm(nope) = %+v, want nil", missing)
	}
}

func TestInMemorySaveFormReplaces(t *testing.T) {
	st := NewInMemoryStore()

	if err := st.SaveForm(sampleForm("f1", "Canada")); err != nil {
		t.Fatalf("SaveForm failed: %v", err)
	}
	updated := sampleForm("f1", "France")
	if err := st.SaveForm(updated); err != nil {
		t.Fatalf("SaveForm replace failed: %v", err)
	}

	forms, err := st.ListForms()
	if err != nil {
		t.Fatalf("ListForms failed: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("ListForms returned %d forms, want 1", len(forms))
	}
	if forms[0].Country != "France" {
		t.Errorf("country = %s, want France", forms[0].Country)
	}
}

func TestSessionCodecRoundTrip(t *testing.T) {
	form := sampleForm("f1", "Canada")
	session := models.NewSession("s1")
	session.State = models.StateAwaitingConfirmation
	session.RecommendedForm = &form
	session.MultipleForms = []models.FormTemplate{form}
	session.Answers["full_name"] = models.Answer{Label: "Full Name", Answer: "Jane Smith", Updated: true}
	session.AppendUser("hello")

	row, err := encodeSession(*session)
	if err != nil {
		t.Fatalf("encodeSession failed: %v", err)
	}
	decoded := models.NewSession("s1")
	decoded.State = models.StateAwaitingConfirmation
	if err := decodeSession(decoded, row); err != nil {
		t.Fatalf("decodeSession failed: %v", err)
	}
	if decoded.RecommendedForm == nil || decoded.RecommendedForm.FormID != "f1" {
		t.Errorf("recommended form = %+v", decoded.RecommendedForm)
	}
	if len(decoded.MultipleForms) != 1 {
		t.Errorf("shortlist length = %d, want 1", len(decoded.MultipleForms))
	}
	if !decoded.Answers["full_name"].Updated {
		t.Error("expected answer's updated flag preserved")
	}
	if len(decoded.History) != 1 {
		t.Errorf("history length = %d, want 1", len(decoded.History))
	}
}
