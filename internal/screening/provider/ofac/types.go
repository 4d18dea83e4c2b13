package ofac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// screenRequest is the body of POST /v4/screen.
type screenRequest struct {
	MinScore int          `json:"minScore"`
	Sources  []string     `json:"sources"`
	Types    []string     `json:"types"`
	Cases    []screenCase `json:"cases"`
}

type screenCase struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	DOB         string      `json:"dob"`
	Citizenship string      `json:"citizenship"`
	Nationality string      `json:"nationality"`
	Address     caseAddress `json:"address"`
}

type caseAddress struct {
	Country string `json:"country"`
}

// screenResponse is the top-level envelope.
type screenResponse struct {
	Error        bool         `json:"error"`
	ErrorMessage string       `json:"errorMessage"`
	Results      []caseResult `json:"results"`
}

type caseResult struct {
	ID      caseID      `json:"id"`
	Matches []caseMatch `json:"matches"`
}

type caseMatch struct {
	MatchSummary matchSummary `json:"matchSummary"`
	Sanction     sanction     `json:"sanction"`
}

type matchSummary struct {
	MatchFields []matchField `json:"matchFields"`
}

type matchField struct {
	FieldName string `json:"fieldName"`
}

type sanction struct {
	Addresses     []sanctionAddress `json:"addresses"`
	PersonDetails personDetails     `json:"personDetails"`
}

type sanctionAddress struct {
	Country string `json:"country"`
}

type personDetails struct {
	Citizenships  []string `json:"citizenships"`
	Nationalities []string `json:"nationalities"`
}

// caseID accepts the case id echoed back as either a JSON number or a string.
type caseID int64

func (c *caseID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("case id %q is not an integer", s)
		}
		*c = caseID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("case id must be an integer: %w", err)
	}
	*c = caseID(n)
	return nil
}
