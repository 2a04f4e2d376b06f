package web

import (
	"net/http"

	"github.com/JonMunkholm/datastore/internal/core"
)

// handleStatements returns the statements the next apply would run.
func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	stmts, err := s.service.Statements(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stmts)
}

// handleScript returns the pending changes as a SQL script. With
// ?download=1 the script is sent as an attachment.
func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	script, err := s.service.Script(sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="changes.sql"`)
	}
	_, _ = w.Write([]byte(script))
}

type exportRequest struct {
	Name string `json:"name,omitempty"`
}

// handleExport writes the script to the configured sink.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	loc, err := s.service.ExportScript(r.Context(), sessionID(r), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"location": loc})
}

// applyResponse carries the batch report, plus the error when the batch
// did not complete.
type applyResponse struct {
	Report core.ApplyReport `json:"report"`
	Error  *ErrorResponse   `json:"error,omitempty"`
}

// handleApply writes the pending changes. The error policy comes from
// ?policy=abort|continue|ignore_all.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Apply(r.Context(), sessionID(r), r.URL.Query().Get("policy"))
	if err != nil {
		// Errors before the batch started have no report to show.
		if report.At.IsZero() {
			s.respondError(w, r, err)
			return
		}
		e := errorResponse(userMessage(err))
		writeJSON(w, statusFor(err), applyResponse{Report: report, Error: &e})
		return
	}
	writeJSON(w, http.StatusOK, applyResponse{Report: report})
}

// handleCancel asks a running apply to stop after the current row.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Cancel(r.Context(), sessionID(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
