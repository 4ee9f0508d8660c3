package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/OpenVisa/VisaFlow/internal/models"
	"github.com/google/uuid"
)

// handleChat processes one conversational turn. A missing session_id starts a
// fresh session under a generated ID.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
		slog.Debug("handleChat: new session", "sessionID", req.SessionID)
	}

	resp, err := s.flow.ProcessMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		slog.Error("handleChat: failed to process message", "error", err, "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to process message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// handleSummary returns the recorded answers for a session.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	summary, err := s.flow.Summary(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, models.ErrFormNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("no form in progress for this session"))
			return
		}
		slog.Error("handleSummary: failed to build summary", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to build summary"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

// handleReset discards all session progress.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if err := s.flow.ResetSession(r.Context(), sessionID); err != nil {
		slog.Error("handleReset: failed to reset session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to reset session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("session reset", nil))
}

// handleListForms lists the catalog as summaries.
func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.st.ListForms()
	if err != nil {
		slog.Error("handleListForms: failed to list forms", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list forms"))
		return
	}
	summaries := make([]*models.FormSummary, 0, len(forms))
	for _, form := range forms {
		summaries = append(summaries, form.Summary())
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summaries))
}

// handleCreateForm registers or replaces a form template in the catalog.
func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var form models.FormTemplate
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if err := form.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.SaveForm(form); err != nil {
		slog.Error("handleCreateForm: failed to save form", "error", err, "formID", form.FormID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save form"))
		return
	}
	slog.Info("handleCreateForm: form saved", "formID", form.FormID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("form saved", form.Summary()))
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"status": "healthy",
		"host":   hostnameOr("unknown"),
	}))
}
