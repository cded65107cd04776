package api

import (
	"encoding/json"
	"net/http"
)

// Error is the JSON body of every non-2xx API response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes by HTTP status. Anything unlisted reports ErrCodeInternal.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"
)

var errorCodes = map[int]string{
	http.StatusBadRequest:         ErrCodeBadRequest,
	http.StatusNotFound:           ErrCodeNotFound,
	http.StatusUnauthorized:       ErrCodeUnauthorized,
	http.StatusServiceUnavailable: ErrCodeUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

// writeError writes an Error body whose code follows from status.
func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := errorCodes[status]
	if !ok {
		code = ErrCodeInternal
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}
