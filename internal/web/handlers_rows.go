package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/datastore/internal/core"
	"github.com/go-chi/chi/v5"
)

// defaultPageSize is used when a rows request names no limit.
const defaultPageSize = 100

// handleRows returns a page of live rows.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", defaultPageSize)

	page, err := s.service.Rows(sessionID(r), offset, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// setCellsRequest is the body of PATCH /cells.
type setCellsRequest struct {
	Edits []core.CellEdit `json:"edits"`
}

// setCellsResponse reports how many edits were applied. Edits before a
// failing one stay applied.
type setCellsResponse struct {
	Applied int              `json:"applied"`
	Pending core.PendingView `json:"pending"`
	Error   *ErrorResponse   `json:"error,omitempty"`
}

// handleSetCells applies cell edits in order.
func (s *Server) handleSetCells(w http.ResponseWriter, r *http.Request) {
	var req setCellsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(req.Edits) == 0 {
		s.respondError(w, r, badRequest("no edits"))
		return
	}

	id := sessionID(r)
	applied, err := s.service.SetValues(r.Context(), id, req.Edits)
	if err != nil && applied == 0 {
		s.respondError(w, r, err)
		return
	}

	info, infoErr := s.service.Info(id)
	if infoErr != nil {
		s.respondError(w, r, infoErr)
		return
	}

	resp := setCellsResponse{Applied: applied, Pending: info.Pending}
	status := http.StatusOK
	if err != nil {
		e := errorResponse(userMessage(err))
		resp.Error = &e
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

// insertRowRequest is the body of POST /rows. A missing or negative At
// appends the row.
type insertRowRequest struct {
	At     *int           `json:"at,omitempty"`
	Values map[string]any `json:"values"`
}

// handleInsertRow adds a new row.
func (s *Server) handleInsertRow(w http.ResponseWriter, r *http.Request) {
	var req insertRowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	at := -1
	if req.At != nil {
		at = *req.At
	}

	row, err := s.service.InsertRow(r.Context(), sessionID(r), at, req.Values)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"row": row})
}

// handleDeleteRow removes a live row.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		s.respondError(w, r, badRequest("row must be an integer"))
		return
	}

	if err := s.service.DeleteRow(r.Context(), sessionID(r), row); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestore reverts every unsaved change.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Restore(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleAccept marks the current state as saved without writing.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Accept(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
