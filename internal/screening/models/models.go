package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date encoding used on every wire and in keys.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time-of-day component.
type Date struct {
	t time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp, keeping only the date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// String returns the ISO calendar date.
func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return d.t
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Person is one individual submitted for screening. ID is only meaningful
// within the request that carried it.
type Person struct {
	ID          int64
	Name        string
	DateOfBirth Date
	Country     string
}

// IdentityKey addresses a person in the cache and the store. It is derived
// from name, date of birth and country, never from the request ID.
type IdentityKey string

func (k IdentityKey) String() string {
	return string(k)
}

// Identity is the (name, dob, country) triple a stored record is matched on.
type Identity struct {
	Name    string
	DOB     Date
	Country string
}

// Verdict is the screening outcome for one person.
type Verdict struct {
	ID           int64
	NameMatch    bool
	DOBMatch     bool
	CountryMatch bool
}

// WithID returns a copy of v correlated to the given request-scoped id.
func (v Verdict) WithID(id int64) Verdict {
	v.ID = id
	return v
}

// Listed reports whether any field matched.
func (v Verdict) Listed() bool {
	return v.NameMatch || v.DOBMatch || v.CountryMatch
}

// Sanction is the part of a provider's watchlist entity used for country matching.
type Sanction struct {
	AddressCountries []string
	Citizenships     []string
	Nationalities    []string
}

// RawMatch is one provider match for one case. It never leaves the request.
type RawMatch struct {
	MatchFields []string
	Sanction    Sanction
}

// Provider match-field names.
const (
	FieldName = "Name"
	FieldDOB  = "DOB"
)

// ScreenedPerson pairs a person's identity with a fresh verdict for persistence.
type ScreenedPerson struct {
	Key      IdentityKey
	Identity Identity
	Verdict  Verdict
}

// StoredPersonRecord is the persisted shape of a screened identity.
type StoredPersonRecord struct {
	Name         string
	DOB          Date
	Country      string
	NameMatch    bool
	DOBMatch     bool
	CountryMatch bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
