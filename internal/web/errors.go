package web

// errors.go provides unified error response handling for the API.
//
// Every error is logged with its technical detail and the request ID, and
// returned to the client as the user message from core.MapError. The HTTP
// status is derived from the error itself.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/datastore/internal/core"
	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/JonMunkholm/datastore/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks malformed requests that never reached the service.
var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

// respondError logs err and writes the mapped user message with the status
// from statusFor.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := userMessage(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	respondErrorJSON(w, userMsg, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse(msg))
}

func errorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// userMessage maps err for the client. Request errors carry their own text.
func userMessage(err error) core.UserMessage {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return core.UserMessage{
			Message: reqErr.msg,
			Action:  "Check the request and try again",
			Code:    "REQ001",
		}
	}
	return core.MapError(err)
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var verr core.ValidationError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManySessions), errors.Is(err, core.ErrTooManyBatches):
		return http.StatusTooManyRequests
	case errors.As(err, &verr),
		errors.Is(err, core.ErrInvalidTableName),
		errors.Is(err, core.ErrInvalidQuery),
		errors.Is(err, core.ErrRowOutOfRange),
		errors.Is(err, datastore.ErrColumnNotUpdateable):
		return http.StatusBadRequest
	case errors.Is(err, datastore.ErrNoPrimaryKey),
		errors.Is(err, datastore.ErrNoUpdateTable),
		errors.Is(err, datastore.ErrRowNotFound):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	// Errors without a sentinel are classified by their catalog code.
	code := core.MapError(err).Code
	switch {
	case code == "TBL001":
		return http.StatusNotFound
	case code == "TBL002", code == "DS004", code == "DS006":
		return http.StatusBadRequest
	case strings.HasPrefix(code, "VAL"):
		return http.StatusBadRequest
	case code == "DB001", code == "DB002", code == "DB003", code == "DB008", code == "DB009":
		return http.StatusConflict
	case code == "DB004", code == "DB005":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
