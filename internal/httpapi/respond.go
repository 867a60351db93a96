package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "formflow/internal/common/errors"
	"formflow/internal/common/logger"
)

type errorBody struct {
	Code        string                     `json:"code"`
	Message     string                     `json:"message"`
	FieldErrors []apperrors.FieldViolation `json:"fieldErrors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders only the user-safe parts of err. Details stay in the logs.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	if status >= http.StatusInternalServerError {
		requestLogger(r).Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}

	writeJSON(w, status, map[string]any{
		"error": errorBody{
			Code:        string(stdErr.Code),
			Message:     stdErr.Message,
			FieldErrors: stdErr.Fields,
		},
	})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

type loggerKey struct{}

func requestLogger(r *http.Request) logger.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(logger.Logger); ok {
		return l
	}
	return logger.NewNoOpLogger()
}
