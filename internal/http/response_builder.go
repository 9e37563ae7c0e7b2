package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"openbudget/internal/core"
	"openbudget/internal/forecast"
	"openbudget/internal/log"
	"openbudget/internal/services"
	"openbudget/internal/storage"
)

// errorBody is the JSON shape of every error reply.
type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and writes it. Server errors are
// logged with the request logger and their text is not echoed back.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Error = "invalid request"
		for _, p := range verr.Problems {
			body.Problems = append(body.Problems, p.Error())
		}
	}
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err.Error())
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, forecast.ErrInvalidAlpha):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoPublisher):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
