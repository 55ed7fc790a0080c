package api

import (
	"encoding/json"
	"net/http"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stable machine-readable codes carried in the "code" field, so
// clients can branch without parsing messages.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"

	// ErrCodeBadGateway marks commands the panel rejected or failed
	// to execute; the request itself was well-formed.
	ErrCodeBadGateway = "bad_gateway"
)

// writeJSON encodes v with the given status. Encoding errors are not
// reported: by then the status line is on the wire and the client has
// likely gone away.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write, connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeBadGateway(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadGateway, ErrCodeBadGateway, message)
}
