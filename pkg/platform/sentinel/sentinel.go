package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Caches, stores and provider adapters
// return these (optionally wrapped) so the service and handler layers can
// translate them into domain errors.
//
//   - ErrNotFound: key does not exist (or has expired) in a cache or store
//   - ErrCorrupt: stored bytes exist but cannot be decoded
//   - ErrUnavailable: backing service or provider unreachable
//   - ErrRejected: remote service answered but refused the request
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrCorrupt     = errors.New("corrupt data")
	ErrUnavailable = errors.New("unavailable")
	ErrRejected    = errors.New("rejected")
)
