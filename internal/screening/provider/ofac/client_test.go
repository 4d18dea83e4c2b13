package ofac

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener/internal/screening/models"
	"screener/internal/screening/provider"
)

var (
	abuAbbas = models.Person{ID: 1, Name: "Abu Abbas", DateOfBirth: models.NewDate(1948, time.December, 10), Country: "Yemen"}
	ubaid    = models.Person{ID: 2, Name: "Ubaidullah Akhund Sher Mohammed", DateOfBirth: models.NewDate(1950, time.January, 1), Country: "Afghanistan"}
)

const abuAbbasResponse = `{
	"error": false,
	"results": [{
		"id": "1",
		"matches": [{
			"matchSummary": {"matchFields": [{"fieldName": "Name"}, {"fieldName": "DOB"}]},
			"sanction": {
				"addresses": [{"country": "Iraq"}, {"country": "Yemen"}],
				"personDetails": {"citizenships": ["Iraq"], "nationalities": ["Iraq"]}
			}
		}]
	}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL + "/v4/screen", APIKey: "test-key", Timeout: timeout}, nil)
}

func TestClientRequest(t *testing.T) {
	var got screenRequest
	var apiKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("apiKey")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"error":false,"results":[{"id":1,"matches":[]},{"id":2,"matches":[]}]}`))
	}, time.Second)

	_, err := client.Screen(context.Background(), []models.Person{abuAbbas, ubaid})
	require.NoError(t, err)

	assert.Equal(t, "test-key", apiKey)
	assert.Equal(t, 95, got.MinScore)
	assert.Equal(t, DefaultSources, got.Sources)
	assert.Equal(t, []string{"person", "organization"}, got.Types)
	require.Len(t, got.Cases, 2)

	c := got.Cases[0]
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "Abu Abbas", c.Name)
	assert.Equal(t, "1948-12-10", c.DOB)
	assert.Equal(t, "Yemen", c.Citizenship)
	assert.Equal(t, "Yemen", c.Nationality)
	assert.Equal(t, "Yemen", c.Address.Country)
}

func TestClientConfigOverrides(t *testing.T) {
	var got screenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"error":false,"results":[{"id":1}]}`))
	}))
	t.Cleanup(srv.Close)

	client := New(Config{URL: srv.URL, MinScore: 80, Sources: []string{"sdn"}, Types: []string{"person"}}, nil)
	_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
	require.NoError(t, err)
	assert.Equal(t, 80, got.MinScore)
	assert.Equal(t, []string{"sdn"}, got.Sources)
	assert.Equal(t, []string{"person"}, got.Types)
}

func TestClientParsesMatches(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(abuAbbasResponse))
	}, time.Second)

	results, err := client.Screen(context.Background(), []models.Person{abuAbbas})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, int64(1), r.CaseID)
	require.Len(t, r.Matches, 1)
	assert.Equal(t, []string{"Name", "DOB"}, r.Matches[0].MatchFields)
	assert.Equal(t, []string{"Iraq", "Yemen"}, r.Matches[0].Sanction.AddressCountries)
	assert.Equal(t, []string{"Iraq"}, r.Matches[0].Sanction.Citizenships)
	assert.Equal(t, []string{"Iraq"}, r.Matches[0].Sanction.Nationalities)
}

func TestClientFailures(t *testing.T) {
	t.Run("envelope error flag", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":true,"errorMessage":"Invalid API key"}`))
		}, time.Second)

		_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
		var ae *provider.ApplicationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "Invalid API key", ae.Message)
		assert.False(t, ae.Contract())
	})

	t.Run("non-2xx status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, time.Second)

		_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
		var te *provider.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusBadGateway, te.StatusCode)
		assert.False(t, te.Timeout())
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, 50*time.Millisecond)
		defer close(release)

		_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
		var te *provider.TransportError
		require.ErrorAs(t, err, &te)
		assert.True(t, te.Timeout())
		assert.Equal(t, provider.KindTimeout, provider.KindOf(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := New(Config{URL: url, Timeout: time.Second}, nil)
		_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
		var te *provider.TransportError
		require.ErrorAs(t, err, &te)
		assert.Zero(t, te.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":false,"results":[`))
		}, time.Second)

		_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
		assert.Equal(t, provider.KindContract, provider.KindOf(err))
	})

	t.Run("missing case", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":false,"results":[{"id":1,"matches":[]}]}`))
		}, time.Second)

		_, err := client.Screen(context.Background(), []models.Person{abuAbbas, ubaid})
		assert.Equal(t, provider.KindContract, provider.KindOf(err))
	})

	t.Run("unknown case", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":false,"results":[{"id":1},{"id":9}]}`))
		}, time.Second)

		_, err := client.Screen(context.Background(), []models.Person{abuAbbas})
		assert.Equal(t, provider.KindContract, provider.KindOf(err))
	})
}

func TestCaseIDUnmarshal(t *testing.T) {
	var id caseID
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &id))
	assert.Equal(t, caseID(12), id)
	require.NoError(t, json.Unmarshal([]byte(`13`), &id))
	assert.Equal(t, caseID(13), id)
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &id))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(context.DeadlineExceeded))
	assert.False(t, isTimeout(errors.New("connection refused")))
}
