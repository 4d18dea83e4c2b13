package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"screener/internal/screening/identity"
	"screener/internal/screening/models"
)

type fakeProducer struct {
	records []*kgo.Record
	failAt  map[int]error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for i, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.failAt[i]})
	}
	return results
}

func screenedAbbas() models.ScreenedPerson {
	p := models.Person{ID: 4, Name: "Abu Abbas", DateOfBirth: models.NewDate(1948, time.December, 10), Country: "Yemen"}
	return models.ScreenedPerson{
		Key:      identity.Derive(p),
		Identity: identity.Fields(p),
		Verdict:  models.Verdict{ID: 4, NameMatch: true, DOBMatch: true},
	}
}

func TestKafkaPublisher(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("produces keyed json records", func(t *testing.T) {
		producer := &fakeProducer{}
		p := NewKafkaPublisher(producer, "screening-events")
		sp := screenedAbbas()

		require.NoError(t, p.Publish(context.Background(), []Event{NewEvent("req-1", "ofac", sp, at)}))
		require.Len(t, producer.records, 1)

		r := producer.records[0]
		assert.Equal(t, "screening-events", r.Topic)
		assert.Equal(t, []byte(sp.Key), r.Key)
		assert.Equal(t, "event_type", r.Headers[0].Key)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(r.Value, &payload))
		assert.Equal(t, EventScreeningCompleted, payload["type"])
		assert.Equal(t, "req-1", payload["request_id"])
		assert.Equal(t, "1948-12-10", payload["dob"])
		assert.Equal(t, true, payload["name_match"])
		assert.Equal(t, false, payload["country_match"])
		assert.NotContains(t, payload, "id")
	})

	t.Run("reports failed acknowledgements", func(t *testing.T) {
		producer := &fakeProducer{failAt: map[int]error{1: errors.New("NOT_LEADER_FOR_PARTITION")}}
		p := NewKafkaPublisher(producer, "screening-events")
		sp := screenedAbbas()

		err := p.Publish(context.Background(), []Event{NewEvent("", "ofac", sp, at), NewEvent("", "ofac", sp, at)})
		var pe *PublishError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 2, pe.Attempted)
		assert.Equal(t, 1, pe.Failed)
	})

	t.Run("empty batch produces nothing", func(t *testing.T) {
		producer := &fakeProducer{}
		require.NoError(t, NewKafkaPublisher(producer, "t").Publish(context.Background(), nil))
		assert.Empty(t, producer.records)
	})
}
