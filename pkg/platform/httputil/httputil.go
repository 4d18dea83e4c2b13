// Package httputil holds the JSON encode/decode and error-envelope helpers
// shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	dErrors "screener/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies accepted by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that validate and normalise themselves.
type Validatable interface {
	Validate() error
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the JSON error envelope. Internal errors never
// expose their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, dErrors.HTTPStatus(code), resp)
}

// DecodeAndPrepare decodes the JSON body into T, runs its validation, and writes
// an error response on failure. The second return value reports whether the
// caller should continue.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *zap.Logger, requestID string) (*T, bool) {
	var req T
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		logger.Debug("failed to decode request body",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		WriteError(w, dErrors.New(dErrors.CodeValidation, msg))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		logger.Debug("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		if !dErrors.Is(err) {
			err = dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
		}
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
