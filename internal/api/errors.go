package api

import (
	"net/http"

	"github.com/k1networth/hello-pipeline/internal/shared/jsoncodec"
	"github.com/k1networth/hello-pipeline/internal/shared/requestid"
)

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ValidationError string

func (e ValidationError) Error() string { return string(e) }

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{Code: code, Message: message, RequestID: requestid.Get(r.Context())},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = jsoncodec.Encode(w, v)
}
