package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenVisa/VisaFlow/internal/models"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "visaflow.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return st
}

func TestSQLiteRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("NewSQLiteStore without a DSN must fail")
	}
}

func TestSQLiteLoadSessionInitializesFresh(t *testing.T) {
	st := newSQLiteTestStore(t)

	session, err := st.LoadSession("missing")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if session.SessionID != "missing" || session.State != models.StateChatting {
		t.Errorf("fresh session = %+v", session)
	}
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	st := newSQLiteTestStore(t)

	form := sampleForm("f1", "Canada")
	session := models.NewSession("s1")
	session.State = models.StateFillingForm
	session.MatchedFormID = "f1"
	session.RecommendedForm = &form
	session.CurrentFieldIndex = 1
	session.Answers["full_name"] = models.Answer{Label: "Full Name", Answer: "Jane Smith", Updated: true}
	session.AppendUser("hello")
	session.AppendAssistant("hi!")

	if err := st.SaveSession(*session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := st.LoadSession("s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.State != models.StateFillingForm || loaded.MatchedFormID != "f1" || loaded.CurrentFieldIndex != 1 {
		t.Errorf("loaded session = %+v", loaded)
	}
	if loaded.RecommendedForm == nil || loaded.RecommendedForm.FormID != "f1" {
		t.Errorf("recommended form = %+v", loaded.RecommendedForm)
	}
	if answer := loaded.Answers["full_name"]; answer.Answer != "Jane Smith" || !answer.Updated {
		t.Errorf("answer = %+v", answer)
	}
	if len(loaded.History) != 2 {
		t.Errorf("history length = %d, want 2", len(loaded.History))
	}
}

func TestSQLiteSaveSessionUpserts(t *testing.T) {
	st := newSQLiteTestStore(t)

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

func TestSQLiteSaveSessionRefreshesUpdatedAt(t *testing.T) {
	st := newSQLiteTestStore(t)

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

func TestSQLiteFormCatalog(t *testing.T) {
	st := newSQLiteTestStore(t)

	first := sampleForm("f1", "Canada")
	first.PurposeKeywords = []string{"vacation", "holiday"}
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := sampleForm("f2", "Germany")
	second.CreatedAt = time.Now()

	if err := st.SaveForm(first); err != nil {
		t.Fatalf("SaveForm failed: %v", err)
	}
	if err := st.SaveForm(second); err != nil {
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
		t.Errorf("forms out of order: %s, %s", forms[0].FormID, forms[1].FormID)
	}
	if len(forms[0].PurposeKeywords) != 2 {
		t.Errorf("purpose keywords = %v", forms[0].PurposeKeywords)
	}

	form, err := st.GetForm("f2")
	if err != nil {
		t.Fatalf("GetForm failed: %v", err)
	}
	if form == nil || form.Country != "Germany" || len(form.Fields) != 1 {
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
