package store

import (
	"encoding/json"
	"fmt"

	"github.com/OpenVisa/VisaFlow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalOrEmpty marshals v to a JSON string, returning "" for nil-ish values.
func marshalOrEmpty(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}
	return string(data), nil
}

// sessionRow holds the JSON-encoded columns of a session record.
type sessionRow struct {
	history     string
	answers     string
	recommended string
	multiple    string
}

// encodeSession converts a session's structured members to JSON columns.
// Parse-validate happens here at the store boundary, not at every access.
func encodeSession(session models.Session) (sessionRow, error) {
	var row sessionRow
	var err error
	if row.history, err = marshalOrEmpty(session.History); err != nil {
		return row, fmt.Errorf("encode history: %w", err)
	}
	if row.answers, err = marshalOrEmpty(session.Answers); err != nil {
		return row, fmt.Errorf("encode answers: %w", err)
	}
	if session.RecommendedForm != nil {
		if row.recommended, err = marshalOrEmpty(session.RecommendedForm); err != nil {
			return row, fmt.Errorf("encode recommended form: %w", err)
		}
	}
	if len(session.MultipleForms) > 0 {
		if row.multiple, err = marshalOrEmpty(session.MultipleForms); err != nil {
			return row, fmt.Errorf("encode multiple forms: %w", err)
		}
	}
	return row, nil
}

// decodeSession fills a session's structured members from JSON columns.
func decodeSession(session *models.Session, row sessionRow) error {
	session.History = []models.ConversationMessage{}
	if row.history != "" {
		if err := json.Unmarshal([]byte(row.history), &session.History); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
	}
	session.Answers = map[string]models.Answer{}
	if row.answers != "" {
		if err := json.Unmarshal([]byte(row.answers), &session.Answers); err != nil {
			return fmt.Errorf("decode answers: %w", err)
		}
	}
	if row.recommended != "" {
		session.RecommendedForm = &models.FormTemplate{}
		if err := json.Unmarshal([]byte(row.recommended), session.RecommendedForm); err != nil {
			return fmt.Errorf("decode recommended form: %w", err)
		}
	}
	if row.multiple != "" {
		if err := json.Unmarshal([]byte(row.multiple), &session.MultipleForms); err != nil {
			return fmt.Errorf("decode multiple forms: %w", err)
		}
	}
	return nil
}

// encodeForm converts a form template's list members to JSON columns.
func encodeForm(form models.FormTemplate) (keywords, fields string, err error) {
	if len(form.PurposeKeywords) > 0 {
		if keywords, err = marshalOrEmpty(form.PurposeKeywords); err != nil {
			return "", "", fmt.Errorf("encode purpose keywords: %w", err)
		}
	}
	if fields, err = marshalOrEmpty(form.Fields); err != nil {
		return "", "", fmt.Errorf("encode fields: %w", err)
	}
	return keywords, fields, nil
}

// decodeForm fills a form template's list members from JSON columns.
func decodeForm(form *models.FormTemplate, keywords, fields string) error {
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &form.PurposeKeywords); err != nil {
			return fmt.Errorf("decode purpose keywords: %w", err)
		}
	}
	form.Fields = []models.Field{}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &form.Fields); err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
	}
	return nil
}
