// Package store provides storage backends for VisaFlow.
//
// This file implements the SQLite-backed store for sessions and the form catalog.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/OpenVisa/VisaFlow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions and forms in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite store ready", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// LoadSession retrieves a session, initializing a fresh record when absent.
func (s *SQLiteStore) LoadSession(sessionID string) (*models.Session, error) {
	query := `SELECT session_id, state, matched_form_id, current_field_index,
			  history, answers, recommended_form, multiple_forms, created_at, updated_at
			  FROM sessions WHERE session_id = ?`

	var session models.Session
	var matchedFormID, history, answers, recommended, multiple sql.NullString

	err := s.db.QueryRow(query, sessionID).Scan(
		&session.SessionID, &session.State, &matchedFormID, &session.CurrentFieldIndex,
		&history, &answers, &recommended, &multiple, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore LoadSession not found, initializing", "sessionID", sessionID)
		return models.NewSession(sessionID), nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}

	session.MatchedFormID = matchedFormID.String
	row := sessionRow{
		history:     history.String,
		answers:     answers.String,
		recommended: recommended.String,
		multiple:    multiple.String,
	}
	if err := decodeSession(&session, row); err != nil {
		slog.Error("SQLiteStore LoadSession decode failed", "error", err, "sessionID", sessionID)
		return nil, err
	}

	slog.Debug("SQLiteStore LoadSession found", "sessionID", sessionID, "state", session.State)
	return &session, nil
}

// SaveSession stores or updates a session record.
func (s *SQLiteStore) SaveSession(session models.Session) error {
	session.UpdatedAt = time.Now()
	row, err := encodeSession(session)
	if err != nil {
		slog.Error("SQLiteStore SaveSession encode failed", "error", err, "sessionID", session.SessionID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO sessions
		(session_id, state, matched_form_id, current_field_index, history, answers, recommended_form, multiple_forms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, session.SessionID, session.State, nilIfEmpty(session.MatchedFormID),
		session.CurrentFieldIndex, nilIfEmpty(row.history), nilIfEmpty(row.answers),
		nilIfEmpty(row.recommended), nilIfEmpty(row.multiple), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", session.SessionID)
		return err
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", session.SessionID, "state", session.State)
	return nil
}

// ListForms returns all catalog forms ordered by creation time.
func (s *SQLiteStore) ListForms() ([]models.FormTemplate, error) {
	query := `SELECT form_id, title, visa_type, country, purpose_keywords, fields, created_at
			  FROM forms ORDER BY created_at, form_id`

	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("SQLiteStore ListForms failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var forms []models.FormTemplate
	for rows.Next() {
		var form models.FormTemplate
		var keywords, fields sql.NullString
		if err := rows.Scan(&form.FormID, &form.Title, &form.VisaType, &form.Country,
			&keywords, &fields, &form.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListForms scan failed", "error", err)
			return nil, err
		}
		if err := decodeForm(&form, keywords.String, fields.String); err != nil {
			slog.Error("SQLiteStore ListForms decode failed", "error", err, "formID", form.FormID)
			return nil, err
		}
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore ListForms succeeded", "count", len(forms))
	return forms, nil
}

// GetForm retrieves a form template by id, or nil when not found.
func (s *SQLiteStore) GetForm(formID string) (*models.FormTemplate, error) {
	query := `SELECT form_id, title, visa_type, country, purpose_keywords, fields, created_at
			  FROM forms WHERE form_id = ?`

	var form models.FormTemplate
	var keywords, fields sql.NullString
	err := s.db.QueryRow(query, formID).Scan(&form.FormID, &form.Title, &form.VisaType,
		&form.Country, &keywords, &fields, &form.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetForm not found", "formID", formID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetForm failed", "error", err, "formID", formID)
		return nil, err
	}
	if err := decodeForm(&form, keywords.String, fields.String); err != nil {
		slog.Error("SQLiteStore GetForm decode failed", "error", err, "formID", formID)
		return nil, err
	}
	return &form, nil
}

// SaveForm stores or updates a form template.
func (s *SQLiteStore) SaveForm(form models.FormTemplate) error {
	keywords, fields, err := encodeForm(form)
	if err != nil {
		slog.Error("SQLiteStore SaveForm encode failed", "error", err, "formID", form.FormID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO forms (form_id, title, visa_type, country, purpose_keywords, fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, form.FormID, form.Title, form.VisaType, form.Country,
		nilIfEmpty(keywords), fields, form.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveForm failed", "error", err, "formID", form.FormID)
		return err
	}
	slog.Debug("SQLiteStore SaveForm succeeded", "formID", form.FormID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
