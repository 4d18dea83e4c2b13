package provider

import (
	"errors"
	"fmt"

	"screener/pkg/platform/sentinel"
)

// ErrorKind classifies provider failures for logging and metrics.
type ErrorKind string

const (
	// KindTransport covers network failures and non-2xx responses.
	KindTransport ErrorKind = "transport"

	// KindTimeout is a transport failure caused by the call deadline.
	KindTimeout ErrorKind = "timeout"

	// KindApplication covers a well-formed response flagging its own error.
	KindApplication ErrorKind = "application"

	// KindContract covers responses that break the expected shape.
	KindContract ErrorKind = "contract"
)

// TransportError means the provider could not be reached or answered with a
// non-success status. It is fatal for the batch.
type TransportError struct {
	ProviderID string
	StatusCode int // zero when no response was received
	timeout    bool
	Underlying error
}

// NewTransportError wraps a network-level failure.
func NewTransportError(providerID string, statusCode int, timeout bool, underlying error) *TransportError {
	return &TransportError{
		ProviderID: providerID,
		StatusCode: statusCode,
		timeout:    timeout,
		Underlying: underlying,
	}
}

func (e *TransportError) Error() string {
	switch {
	case e.timeout:
		return fmt.Sprintf("provider %s: request timed out: %v", e.ProviderID, e.Underlying)
	case e.StatusCode != 0:
		return fmt.Sprintf("provider %s: unexpected status %d", e.ProviderID, e.StatusCode)
	default:
		return fmt.Sprintf("provider %s: transport failure: %v", e.ProviderID, e.Underlying)
	}
}

func (e *TransportError) Unwrap() []error {
	if e.Underlying == nil {
		return []error{sentinel.ErrUnavailable}
	}
	return []error{sentinel.ErrUnavailable, e.Underlying}
}

// Timeout reports whether the failure was the call deadline expiring.
func (e *TransportError) Timeout() bool {
	return e.timeout
}

// ApplicationError means the provider answered but the answer is unusable:
// either the envelope carries its own error flag or the payload breaks the
// contract. The provider's message is passed through.
type ApplicationError struct {
	ProviderID string
	Message    string
	contract   bool
}

// NewApplicationError reports an error flagged by the provider itself.
func NewApplicationError(providerID, message string) *ApplicationError {
	return &ApplicationError{ProviderID: providerID, Message: message}
}

// NewContractError reports a response that does not match the expected shape.
func NewContractError(providerID, message string) *ApplicationError {
	return &ApplicationError{ProviderID: providerID, Message: message, contract: true}
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("provider %s error: %s", e.ProviderID, e.Message)
}

func (e *ApplicationError) Unwrap() error {
	return sentinel.ErrRejected
}

// Contract reports whether the error came from a malformed response rather
// than the provider's own error flag.
func (e *ApplicationError) Contract() bool {
	return e.contract
}

// KindOf extracts the failure kind from err. Errors that did not come from a
// provider adapter report as KindTransport.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}
	var ae *ApplicationError
	if errors.As(err, &ae) {
		if ae.Contract() {
			return KindContract
		}
		return KindApplication
	}
	return KindTransport
}
