package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/workspaces-mcp/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string      `json:"error" validate:"required"`
	Kind  apperr.Kind `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidName, apperr.KindInvalidURI, apperr.KindUnsupportedScheme,
		apperr.KindInvalidInstructionPath, apperr.KindSchemaValidationFailed:
		return http.StatusBadRequest
	case apperr.KindContentTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindSecurityViolation:
		return http.StatusForbidden
	case apperr.KindNotFound, apperr.KindUnknownTool:
		return http.StatusNotFound
	case apperr.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with the status of its kind. Server-side faults are
// logged and their details withheld.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		writeJSON(w, status, errResponse{Error: "internal error", Kind: kind})
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Kind: kind})
}
