// Package store provides storage backends for VisaFlow.
//
// It defines the session and form-catalog store interface with SQLite and
// PostgreSQL implementations, plus an in-memory store used by tests.
package store

import (
	"sync"
	"time"

	"github.com/OpenVisa/VisaFlow/internal/models"
)

// Store defines persistence operations for sessions and the form catalog.
// LoadSession returns a freshly-initialized record (state=chatting, empty
// history, zero cursor) when no record exists; SaveSession is an upsert
// keyed by session id. The form catalog is read-only from the core's
// perspective; SaveForm exists for the ingestion surface.
type Store interface {
	LoadSession(sessionID string) (*models.Session, error)
	SaveSession(session models.Session) error
	ListForms() ([]models.FormTemplate, error)
	GetForm(formID string) (*models.FormTemplate, error)
	SaveForm(form models.FormTemplate) error
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// postgres:// URL for PostgreSQL.
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a simple map-backed store used in tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	forms    map[string]models.FormTemplate
	order    []string // form insertion order, so ListForms is deterministic
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.Session),
		forms:    make(map[string]models.FormTemplate),
	}
}

// LoadSession retrieves a session, initializing a fresh one when absent.
func (s *InMemoryStore) LoadSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		copied := sess
		return &copied, nil
	}
	return models.NewSession(sessionID), nil
}

// SaveSession upserts a session record.
func (s *InMemoryStore) SaveSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.UpdatedAt = time.Now()
	s.sessions[session.SessionID] = session
	return nil
}

// ListForms returns all catalog forms in insertion order.
func (s *InMemoryStore) ListForms() ([]models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forms := make([]models.FormTemplate, 0, len(s.order))
	for _, id := range s.order {
		forms = append(forms, s.forms[id])
	}
	return forms, nil
}

// GetForm returns a form by id, or nil when not found.
func (s *InMemoryStore) GetForm(formID string) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if form, ok := s.forms[formID]; ok {
		copied := form
		return &copied, nil
	}
	return nil, nil
}

// SaveForm upserts a form template.
func (s *InMemoryStore) SaveForm(form models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.forms[form.FormID]; !exists {
		s.order = append(s.order, form.FormID)
	}
	s.forms[form.FormID] = form
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
