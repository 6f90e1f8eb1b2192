package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/cmpt474/mm-login-gateway/internal/errors"
)

// DefaultMaxBodyBytes caps JSON request bodies when the router is not configured otherwise.
const DefaultMaxBodyBytes int64 = 64 << 10

// DecodeJSON decodes a size-limited JSON body into dst. Fields dst does not declare are ignored,
// since browser clients send whatever their form holds.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) bool {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteFailure(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		WriteFailure(w, http.StatusBadRequest, "Malformed request body")
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// failureBody is the error shape every login and elevation route returns.
type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteFailure writes {success:false, error:msg}.
func WriteFailure(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, failureBody{Error: msg})
}

// WriteAppError maps err onto a status code and a client-safe message.
// Internal causes never reach the body.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteFailure(w, apperrors.HTTPStatus(err), apperrors.PublicMessage(err, "Internal server error"))
}
