// Package ofac adapts the OFAC API screening endpoint to provider.Client.
package ofac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"screener/internal/screening/models"
	"screener/internal/screening/provider"
)

// ProviderID identifies this adapter in logs, errors and metrics.
const ProviderID = "ofac"

// Request defaults. Sources and types are the fixed lists the service screens
// against unless configuration overrides them.
var (
	DefaultMinScore = 95
	DefaultTimeout  = 10 * time.Second
	DefaultSources  = []string{"sdn", "nonsdn", "un", "ofsi", "eu", "dpl", "sema", "bfs", "mxsat", "lfiu"}
	DefaultTypes    = []string{"person", "organization"}
)

var tracer = otel.Tracer("screener/internal/screening/provider/ofac")

// Config configures the OFAC client. Zero values fall back to the defaults.
type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	MinScore int
	Sources  []string
	Types    []string
}

// Client calls the OFAC API. It never retries: a failed call fails the batch.
type Client struct {
	http     *resty.Client
	url      string
	apiKey   string
	minScore int
	sources  []string
	types    []string
	logger   *zap.Logger
}

// New builds a Client from cfg.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}
	types := cfg.Types
	if len(types) == 0 {
		types = DefaultTypes
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:     httpClient,
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		minScore: minScore,
		sources:  sources,
		types:    types,
		logger:   logger,
	}
}

// ID implements provider.Client.
func (c *Client) ID() string {
	return ProviderID
}

// Screen sends every person as one batched request.
func (c *Client) Screen(ctx context.Context, people []models.Person) ([]provider.Result, error) {
	ctx, span := tracer.Start(ctx, "ofac.Screen", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("screening.cases", len(people)))

	results, err := c.screen(ctx, people)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(provider.KindOf(err)))
		return nil, err
	}
	return results, nil
}

func (c *Client) screen(ctx context.Context, people []models.Person) ([]provider.Result, error) {
	body := screenRequest{
		MinScore: c.minScore,
		Sources:  c.sources,
		Types:    c.types,
		Cases:    toCases(people),
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("apiKey", c.apiKey).
		SetBody(body).
		Post(c.url)
	if err != nil {
		timeout := isTimeout(err)
		c.logger.Error("OFAC API call failed",
			zap.Int("cases", len(people)),
			zap.Bool("timeout", timeout),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, provider.NewTransportError(ProviderID, 0, timeout, err)
	}
	if !resp.IsSuccess() {
		c.logger.Error("OFAC API returned non-success status",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("cases", len(people)),
		)
		return nil, provider.NewTransportError(ProviderID, resp.StatusCode(), false,
			fmt.Errorf("status %s", resp.Status()))
	}

	var envelope screenResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		c.logger.Error("failed to decode OFAC API response", zap.Error(err))
		return nil, provider.NewContractError(ProviderID, fmt.Sprintf("decode response: %v", err))
	}
	if envelope.Error {
		c.logger.Error("OFAC API returned error",
			zap.String("error_message", envelope.ErrorMessage),
		)
		return nil, provider.NewApplicationError(ProviderID, envelope.ErrorMessage)
	}

	results, err := toResults(ProviderID, people, envelope.Results)
	if err != nil {
		c.logger.Error("OFAC API response violates contract", zap.Error(err))
		return nil, err
	}

	c.logger.Debug("OFAC API screening complete",
		zap.Int("cases", len(people)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
