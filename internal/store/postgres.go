// Package store provides storage backends for VisaFlow.
//
// This file implements the PostgreSQL-backed store for sessions and the form catalog.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/OpenVisa/VisaFlow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions and forms in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres store ready")

	return &PostgresStore{db: db}, nil
}

// LoadSession retrieves a session, initializing a fresh record when absent.
func (s *PostgresStore) LoadSession(sessionID string) (*models.Session, error) {
	query := `SELECT session_id, state, matched_form_id, current_field_index,
			  history, answers, recommended_form, multiple_forms, created_at, updated_at
			  FROM sessions WHERE session_id = $1`

	var session models.Session
	var matchedFormID, history, answers, recommended, multiple sql.NullString

	err := s.db.QueryRow(query, sessionID).Scan(
		&session.SessionID, &session.State, &matchedFormID, &session.CurrentFieldIndex,
		&history, &answers, &recommended, &multiple, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore LoadSession not found, initializing", "sessionID", sessionID)
		return models.NewSession(sessionID), nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadSession failed", "error", err, "sessionID", sessionID)
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
		slog.Error("PostgresStore LoadSession decode failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &session, nil
}

// SaveSession stores or updates a session record.
func (s *PostgresStore) SaveSession(session models.Session) error {
	session.UpdatedAt = time.Now()
	row, err := encodeSession(session)
	if err != nil {
		slog.Error("PostgresStore SaveSession encode failed", "error", err, "sessionID", session.SessionID)
		return err
	}

	query := `
		INSERT INTO sessions
		(session_id, state, matched_form_id, current_field_index, history, answers, recommended_form, multiple_forms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			matched_form_id = EXCLUDED.matched_form_id,
			current_field_index = EXCLUDED.current_field_index,
			history = EXCLUDED.history,
			answers = EXCLUDED.answers,
			recommended_form = EXCLUDED.recommended_form,
			multiple_forms = EXCLUDED.multiple_forms,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(query, session.SessionID, session.State, nilIfEmpty(session.MatchedFormID),
		session.CurrentFieldIndex, nilIfEmpty(row.history), nilIfEmpty(row.answers),
		nilIfEmpty(row.recommended), nilIfEmpty(row.multiple), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", session.SessionID)
		return err
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", session.SessionID, "state", session.State)
	return nil
}

// ListForms returns all catalog forms ordered by creation time.
func (s *PostgresStore) ListForms() ([]models.FormTemplate, error) {
	query := `SELECT form_id, title, visa_type, country, purpose_keywords, fields, created_at
			  FROM forms ORDER BY created_at, form_id`

	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("PostgresStore ListForms failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var forms []models.FormTemplate
	for rows.Next() {
		var form models.FormTemplate
		var keywords, fields sql.NullString
		if err := rows.Scan(&form.FormID, &form.Title, &form.VisaType, &form.Country,
			&keywords, &fields, &form.CreatedAt); err != nil {
			slog.Error("PostgresStore ListForms scan failed", "error", err)
			return nil, err
		}
		if err := decodeForm(&form, keywords.String, fields.String); err != nil {
			slog.Error("PostgresStore ListForms decode failed", "error", err, "formID", form.FormID)
			return nil, err
		}
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return forms, nil
}

// GetForm retrieves a form template by id, or nil when not found.
func (s *PostgresStore) GetForm(formID string) (*models.FormTemplate, error) {
	query := `SELECT form_id, title, visa_type, country, purpose_keywords, fields, created_at
			  FROM forms WHERE form_id = $1`

	var form models.FormTemplate
	var keywords, fields sql.NullString
	err := s.db.QueryRow(query, formID).Scan(&form.FormID, &form.Title, &form.VisaType,
		&form.Country, &keywords, &fields, &form.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetForm not found", "formID", formID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetForm failed", "error", err, "formID", formID)
		return nil, err
	}
	if err := decodeForm(&form, keywords.String, fields.String); err != nil {
		slog.Error("PostgresStore GetForm decode failed", "error", err, "formID", formID)
		return nil, err
	}
	return &form, nil
}

// SaveForm stores or updates a form template.
func (s *PostgresStore) SaveForm(form models.FormTemplate) error {
	keywords, fields, err := encodeForm(form)
	if err != nil {
		slog.Error("PostgresStore SaveForm encode failed", "error", err, "formID", form.FormID)
		return err
	}

	query := `
		INSERT INTO forms (form_id, title, visa_type, country, purpose_keywords, fields, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (form_id) DO UPDATE SET
			title = EXCLUDED.title,
			visa_type = EXCLUDED.visa_type,
			country = EXCLUDED.country,
			purpose_keywords = EXCLUDED.purpose_keywords,
			fields = EXCLUDED.fields`

	_, err = s.db.Exec(query, form.FormID, form.Title, form.VisaType, form.Country,
		nilIfEmpty(keywords), fields, form.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveForm failed", "error", err, "formID", form.FormID)
		return err
	}
	slog.Debug("PostgresStore SaveForm succeeded", "formID", form.FormID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
