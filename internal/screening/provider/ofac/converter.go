package ofac

import (
	"fmt"

	"screener/internal/screening/models"
	"screener/internal/screening/provider"
)

// toCases builds one case per person. The single country value is sent as
// citizenship, nationality and address country; callers do not distinguish
// the three yet.
func toCases(people []models.Person) []screenCase {
	cases := make([]screenCase, 0, len(people))
	for _, p := range people {
		cases = append(cases, screenCase{
			ID:          p.ID,
			Name:        p.Name,
			DOB:         p.DateOfBirth.String(),
			Citizenship: p.Country,
			Nationality: p.Country,
			Address:     caseAddress{Country: p.Country},
		})
	}
	return cases
}

// toResults converts the envelope's results, checking that every submitted
// case is answered exactly once and nothing else is.
func toResults(providerID string, people []models.Person, results []caseResult) ([]provider.Result, error) {
	pending := make(map[int64]struct{}, len(people))
	for _, p := range people {
		pending[p.ID] = struct{}{}
	}

	out := make([]provider.Result, 0, len(results))
	for _, r := range results {
		id := int64(r.ID)
		if _, ok := pending[id]; !ok {
			return nil, provider.NewContractError(providerID, fmt.Sprintf("unexpected or duplicate result for case %d", id))
		}
		delete(pending, id)
		out = append(out, provider.Result{CaseID: id, Matches: toRawMatches(r.Matches)})
	}
	if len(pending) > 0 {
		return nil, provider.NewContractError(providerID, fmt.Sprintf("response missing %d of %d cases", len(pending), len(people)))
	}
	return out, nil
}

func toRawMatches(matches []caseMatch) []models.RawMatch {
	if len(matches) == 0 {
		return nil
	}
	out := make([]models.RawMatch, 0, len(matches))
	for _, m := range matches {
		fields := make([]string, 0, len(m.MatchSummary.MatchFields))
		for _, f := range m.MatchSummary.MatchFields {
			fields = append(fields, f.FieldName)
		}
		countries := make([]string, 0, len(m.Sanction.Addresses))
		for _, a := range m.Sanction.Addresses {
			countries = append(countries, a.Country)
		}
		out = append(out, models.RawMatch{
			MatchFields: fields,
			Sanction: models.Sanction{
				AddressCountries: countries,
				Citizenships:     m.Sanction.PersonDetails.Citizenships,
				Nationalities:    m.Sanction.PersonDetails.Nationalities,
			},
		})
	}
	return out
}
