package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"screener/internal/platform/config"
)

const connectTimeout = 10 * time.Second

// Client holds a connected MongoDB client and the service database.
type Client struct {
	*mongo.Client
	DB *mongo.Database
}

// New connects to MongoDB and verifies the primary is reachable.
func New(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.ConnectionURI()).
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return &Client{Client: client, DB: client.Database(cfg.Database)}, nil
}

// Health pings the primary.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.Disconnect(ctx)
}
