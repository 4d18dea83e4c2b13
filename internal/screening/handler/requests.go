package handler

import (
	"fmt"
	"strings"
	"unicode"

	"screener/internal/screening/models"
	dErrors "screener/pkg/domain-errors"
)

// PersonRequest is one person in a screening request body.
type PersonRequest struct {
	ID      *int64 `json:"id"`
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Country string `json:"country"`

	parsedDOB models.Date
}

// ScreenRequest is the body of POST /api/v1/screen: a JSON array of people.
type ScreenRequest []PersonRequest

// Validate checks every person and rejects empty batches and reused ids.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ScreenRequest) Validate() error {
	if r == nil || len(*r) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one person is required")
	}
	seen := make(map[int64]struct{}, len(*r))
	for i := range *r {
		p := &(*r)[i]
		if err := p.validate(i, true); err != nil {
			return err
		}
		if _, dup := seen[*p.ID]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("people[%d].id %d is duplicated", i, *p.ID))
		}
		seen[*p.ID] = struct{}{}
	}
	return nil
}

// People converts the validated request into domain people, in request order.
func (r ScreenRequest) People() []models.Person {
	people := make([]models.Person, 0, len(r))
	for _, p := range r {
		people = append(people, p.person())
	}
	return people
}

// ClearCacheRequest is the body of DELETE /api/v1/screen/cache.
type ClearCacheRequest struct {
	PersonRequest
}

// Validate implements the Validatable interface. The id is optional here.
func (r *ClearCacheRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.validate(-1, false)
}

// Person returns the identity to clear.
func (r *ClearCacheRequest) Person() models.Person {
	return r.person()
}

func (p *PersonRequest) validate(index int, requireID bool) error {
	field := func(name string) string {
		if index < 0 {
			return name
		}
		return fmt.Sprintf("people[%d].%s", index, name)
	}

	if requireID && p.ID == nil {
		return dErrors.New(dErrors.CodeValidation, field("id")+" is required")
	}
	// Identity fields are passed on exactly as sent; blank values and control
	// characters are rejected but nothing is trimmed.
	if strings.TrimSpace(p.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, field("name")+" is required")
	}
	if hasControl(p.Name) {
		return dErrors.New(dErrors.CodeValidation, field("name")+" must not contain control characters")
	}
	if strings.TrimSpace(p.Country) == "" {
		return dErrors.New(dErrors.CodeValidation, field("country")+" is required")
	}
	if hasControl(p.Country) {
		return dErrors.New(dErrors.CodeValidation, field("country")+" must not contain control characters")
	}
	if strings.TrimSpace(p.DOB) == "" {
		return dErrors.New(dErrors.CodeValidation, field("dob")+" is required")
	}
	dob, err := models.ParseDate(p.DOB)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, field("dob")+" must be a date in YYYY-MM-DD format")
	}
	p.parsedDOB = dob
	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

func (p PersonRequest) person() models.Person {
	person := models.Person{
		Name:        p.Name,
		DateOfBirth: p.parsedDOB,
		Country:     p.Country,
	}
	if p.ID != nil {
		person.ID = *p.ID
	}
	return person
}
