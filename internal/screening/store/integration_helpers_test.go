//go:build integration

package store_test

import (
	"context"
	"time"

	"screener/internal/screening/identity"
	"screener/internal/screening/models"
	"screener/pkg/requestcontext"
)

var (
	firstSeen  = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	secondSeen = time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC)
)

func person(name string, dob models.Date, country string, v models.Verdict) models.ScreenedPerson {
	p := models.Person{Name: name, DateOfBirth: dob, Country: country}
	return models.ScreenedPerson{Key: identity.Derive(p), Identity: identity.Fields(p), Verdict: v}
}

func at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
