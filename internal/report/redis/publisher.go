// Package redis publishes hint reports to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hintd/internal/report"
)

// Compile-time check: Publisher implements report.Publisher.
var _ report.Publisher = (*Publisher)(nil)

// DefaultChannel is used when Config.Channel is empty.
const DefaultChannel = "hintd:reports"

// Config holds connection parameters for the report channel.
type Config struct {
	Addrs    []string
	Username string
	Password string
	Channel  string
}

// Publisher sends report events as JSON with PUBLISH.
type Publisher struct {
	client  rueidis.Client
	channel string
}

// NewPublisher creates a Redis publisher via rueidis.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newPublisher(client, cfg.Channel), nil
}

// NewPublisherForTest creates a Publisher with the provided rueidis client (test-only).
func NewPublisherForTest(c rueidis.Client, channel string) *Publisher {
	return newPublisher(c, channel)
}

func newPublisher(c rueidis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: c, channel: channel}
}

// Publish implements report.Publisher.
func (p *Publisher) Publish(ctx context.Context, ev report.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	cmd := p.client.B().Publish().Channel(p.channel).Message(string(payload)).Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	cmd := p.client.B().Ping().Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (p *Publisher) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for report channel: %w", ctx.Err())
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (p *Publisher) Close() {
	p.client.Close()
}
