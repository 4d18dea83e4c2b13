// Package provider defines the capability the screening service needs from a
// sanctions matching provider, and the normalized failures a provider can
// report. Concrete adapters live in subpackages.
package provider

import (
	"context"

	"screener/internal/screening/models"
)

// Client screens a batch of people in one call.
type Client interface {
	// ID names the provider in logs and metrics.
	ID() string

	// Screen returns one Result per submitted person, correlated by CaseID.
	Screen(ctx context.Context, people []models.Person) ([]Result, error)
}

// Result is the provider's raw answer for one case.
type Result struct {
	CaseID  int64
	Matches []models.RawMatch
}
