// Package publisher emits a screening.completed event for every fresh
// verdict. Events are keyed by identity key so all screenings of one person
// land on the same partition.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"screener/internal/screening/models"
)

// EventScreeningCompleted is the event type emitted after a provider lookup.
const EventScreeningCompleted = "screening.completed"

// Event is the JSON payload written to Kafka.
type Event struct {
	Type         string    `json:"type"`
	RequestID    string    `json:"request_id,omitempty"`
	Provider     string    `json:"provider"`
	Name         string    `json:"name"`
	DOB          string    `json:"dob"`
	Country      string    `json:"country"`
	NameMatch    bool      `json:"name_match"`
	DOBMatch     bool      `json:"dob_match"`
	CountryMatch bool      `json:"country_match"`
	ScreenedAt   time.Time `json:"screened_at"`

	key models.IdentityKey
}

// NewEvent builds a screening.completed event for one fresh verdict.
func NewEvent(requestID, providerID string, sp models.ScreenedPerson, at time.Time) Event {
	return Event{
		Type:         EventScreeningCompleted,
		RequestID:    requestID,
		Provider:     providerID,
		Name:         sp.Identity.Name,
		DOB:          sp.Identity.DOB.String(),
		Country:      sp.Identity.Country,
		NameMatch:    sp.Verdict.NameMatch,
		DOBMatch:     sp.Verdict.DOBMatch,
		CountryMatch: sp.Verdict.CountryMatch,
		ScreenedAt:   at,
		key:          sp.Key,
	}
}

// Key returns the partition key.
func (e Event) Key() models.IdentityKey {
	return e.key
}

// Producer is the part of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// PublishError reports events that were not acknowledged.
type PublishError struct {
	Attempted int
	Failed    int
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish screening events: %d of %d failed: %v", e.Failed, e.Attempted, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// KafkaPublisher writes events to one topic and waits for acknowledgement.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher publishes to topic through producer.
func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish produces all events in one synchronous batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return &PublishError{Attempted: len(events), Failed: len(events), Err: fmt.Errorf("encode event: %w", err)}
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.key),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}

	results := p.producer.ProduceSync(ctx, records...)
	failed := 0
	var first error
	for _, r := range results {
		if r.Err != nil {
			failed++
			if first == nil {
				first = r.Err
			}
		}
	}
	if failed > 0 {
		return &PublishError{Attempted: len(events), Failed: failed, Err: first}
	}
	return nil
}
