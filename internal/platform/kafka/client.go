package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"screener/internal/platform/config"
)

// Topic defaults used when the topic does not exist yet.
const (
	DefaultPartitions  = 3
	DefaultReplication = 1
)

// NewProducer builds a franz-go client for producing to cfg.Brokers. Records
// are acknowledged by all in-sync replicas.
func NewProducer(cfg config.Kafka, opts ...kgo.Opt) (*kgo.Client, error) {
	all := append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic if it is missing. An existing topic is left as is.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, DefaultPartitions, DefaultReplication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// HealthCheck pings the cluster.
type HealthCheck struct {
	Client *kgo.Client
}

func (h HealthCheck) Health(ctx context.Context) error {
	return h.Client.Ping(ctx)
}
