package web

// errors.go provides unified error responses: technical detail goes to the
// structured log with the request ID, the client gets a stable JSON shape.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/pgcopy"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError logs the technical error and writes a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	code := errorCode(err, statusCode)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// errorCode picks a stable machine-readable code for the error.
func errorCode(err error, statusCode int) string {
	switch {
	case pgcopy.IsDataError(err):
		return "MALFORMED_COPY_DATA"
	case statusCode == http.StatusBadRequest:
		return "BAD_REQUEST"
	case statusCode == http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
