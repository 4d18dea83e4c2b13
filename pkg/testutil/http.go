// Package testutil provides common test utilities for handler and integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRequestWithBody creates an HTTP request with a raw JSON body.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ErrorResponse is the error envelope written by httputil.WriteError.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// UnmarshalErrorResponse decodes the error envelope.
func UnmarshalErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "failed to unmarshal error response: %s", rr.Body.String())
	return resp
}

// AssertStatusAndError asserts the status code and the envelope's error code,
// and returns the envelope for further checks.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code, "unexpected status code")
	resp := UnmarshalErrorResponse(t, rr)
	assert.Equal(t, expectedCode, resp.Error, "unexpected error code")
	return resp
}
