package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/datastore/internal/core"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is returned by /api/status.
type statusResponse struct {
	Sessions int                     `json:"sessions"`
	Batches  core.BatchLimiterStatus `json:"batches"`
	Time     time.Time               `json:"time"`
}

// handleStatus reports open sessions and batch slots.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Sessions: s.service.SessionCount(),
		Batches:  s.service.Limiter().Status(),
		Time:     time.Now().UTC(),
	})
}

// handleListSessions lists open sessions, oldest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Sessions())
}

// handleOpenSession loads rows into a new session.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req core.OpenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	info, err := s.service.OpenTable(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

// handleSessionInfo describes a session.
func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Info(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleCloseSession discards a session and its unsaved changes.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Close(r.Context(), sessionID(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory returns the session's batch reports.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.service.History(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
