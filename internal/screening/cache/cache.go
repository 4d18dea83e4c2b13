// Package cache stores screening verdicts by identity key with a fixed TTL.
//
// A missing or expired entry is a miss (ErrMiss). An entry whose bytes cannot
// be decoded is a CorruptionError and is never treated as a miss.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"screener/internal/screening/models"
	"screener/pkg/platform/sentinel"
)

// DefaultTTL is applied when a caller passes a non-positive TTL.
const DefaultTTL = time.Hour

// ErrMiss is returned by Get when no live entry exists for the key.
var ErrMiss = fmt.Errorf("verdict cache miss: %w", sentinel.ErrNotFound)

// CorruptionError reports an unreadable cache entry.
type CorruptionError struct {
	Key models.IdentityKey
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt verdict cache entry %q: %v", e.Key.String(), e.Err)
}

func (e *CorruptionError) Unwrap() []error {
	return []error{sentinel.ErrCorrupt, e.Err}
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// entry is the serialized verdict. The request-scoped ID is never stored.
type entry struct {
	NameMatch    *bool `json:"name_match"`
	DOBMatch     *bool `json:"dob_match"`
	CountryMatch *bool `json:"country_match"`
}

func encode(v models.Verdict) ([]byte, error) {
	return json.Marshal(entry{
		NameMatch:    &v.NameMatch,
		DOBMatch:     &v.DOBMatch,
		CountryMatch: &v.CountryMatch,
	})
}

func decode(key models.IdentityKey, data []byte) (models.Verdict, error) {
	var e entry
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return models.Verdict{}, &CorruptionError{Key: key, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return models.Verdict{}, &CorruptionError{Key: key, Err: errors.New("trailing data after verdict")}
	}
	if e.NameMatch == nil || e.DOBMatch == nil || e.CountryMatch == nil {
		return models.Verdict{}, &CorruptionError{Key: key, Err: errors.New("verdict entry missing fields")}
	}
	return models.Verdict{
		NameMatch:    *e.NameMatch,
		DOBMatch:     *e.DOBMatch,
		CountryMatch: *e.CountryMatch,
	}, nil
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
