package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("calendar date", func(t *testing.T) {
		d, err := ParseDate("1948-12-10")
		require.NoError(t, err)
		assert.Equal(t, "1948-12-10", d.String())
	})

	t.Run("timestamp keeps date part", func(t *testing.T) {
		d, err := ParseDate("1948-12-10T23:30:00+02:00")
		require.NoError(t, err)
		assert.Equal(t, "1948-12-10", d.String())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseDate("10/12/1948")
		assert.Error(t, err)
	})
}

func TestDateJSON(t *testing.T) {
	var v struct {
		DOB Date `json:"dob"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"dob":"1950-01-01"}`), &v))
	assert.Equal(t, NewDate(1950, time.January, 1), v.DOB)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dob":"1950-01-01"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"dob":19500101}`), &v))
}

func TestVerdictWithID(t *testing.T) {
	v := Verdict{NameMatch: true}
	tagged := v.WithID(7)
	assert.Equal(t, int64(7), tagged.ID)
	assert.Zero(t, v.ID)
	assert.True(t, tagged.Listed())
	assert.False(t, Verdict{}.Listed())
}
