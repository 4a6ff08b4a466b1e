package web

// errors.go provides unified error responses for the API.
//
// Technical errors are logged with the request ID; clients receive the
// user-facing message from core.MapError.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ay01sec/labor-admin-sub000/internal/core"
	"github.com/ay01sec/labor-admin-sub000/internal/logging"
)

var errBadForm = errors.New("invalid multipart upload")

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

var statusByError = []struct {
	err    error
	status int
}{
	{core.ErrUnknownEntity, http.StatusNotFound},
	{core.ErrImportNotFound, http.StatusNotFound},
	{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrNoFile, http.StatusBadRequest},
	{errBadForm, http.StatusBadRequest},
	{core.ErrNoDataRows, http.StatusBadRequest},
	{core.ErrNothingToImport, http.StatusUnprocessableEntity},
	{core.ErrAlreadyStarted, http.StatusConflict},
	{core.ErrNotStarted, http.StatusConflict},
	{core.ErrImportCancelled, http.StatusConflict},
	{core.ErrNotAdmin, http.StatusForbidden},
	{core.ErrTooManyImports, http.StatusServiceUnavailable},
	{errRateLimited, http.StatusTooManyRequests},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	for _, s := range statusByError {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	writeJSONStatus(w, status, ErrorResponse{
		Error:  msg.Message,
		Action: msg.Action,
		Code:   msg.Code,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeCSV sends data as a download named filename.
func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
