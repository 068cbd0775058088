package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "flowboard/pkg/errors"
)

// MaxBodyBytes bounds request bodies; a board document easily fits
const MaxBodyBytes = 1 << 20

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// RespondNoContent sends 204
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields. Decode
// failures come back as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.NewValidationError("request body is required").WithCode(pkgerrors.CodeInvalidInput)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.NewValidationError("request body is too large").WithCode(pkgerrors.CodeInvalidInput)
		}
		return pkgerrors.NewValidationError("invalid request body: " + err.Error()).WithCode(pkgerrors.CodeInvalidInput)
	}
	return nil
}
