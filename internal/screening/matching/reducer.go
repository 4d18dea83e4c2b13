// Package matching reduces a provider's match list for one person into the
// three-boolean verdict.
package matching

import (
	"slices"

	"screener/internal/screening/models"
)

// Reduce folds matches into a verdict for a person from country. All flags
// start false and only ever flip to true; an empty match list is all-false.
// The returned verdict carries no request ID.
func Reduce(matches []models.RawMatch, country string) models.Verdict {
	var v models.Verdict
	for _, m := range matches {
		reduceFields(&v, m.MatchFields)
		if !v.CountryMatch {
			v.CountryMatch = countryMatches(m.Sanction, country)
		}
	}
	return v
}

// reduceFields records the first Name and DOB indicators. Scanning stops once
// both are set, which cannot change the outcome.
func reduceFields(v *models.Verdict, fields []string) {
	for _, field := range fields {
		if v.NameMatch && v.DOBMatch {
			return
		}
		switch field {
		case models.FieldName:
			v.NameMatch = true
		case models.FieldDOB:
			v.DOBMatch = true
		}
	}
}

// countryMatches checks address countries, then citizenships, then nationalities.
func countryMatches(s models.Sanction, country string) bool {
	return slices.Contains(s.AddressCountries, country) ||
		slices.Contains(s.Citizenships, country) ||
		slices.Contains(s.Nationalities, country)
}
