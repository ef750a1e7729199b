// Package events publishes evolution progress to NATS so dashboards and
// other services can follow runs without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/evolver/internal/metrics"
	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// DefaultPrefix namespaces every subject
const DefaultPrefix = "evolver"

// EventType identifies the payload of an Event
type EventType string

const (
	EventTypeGeneration   EventType = "generation_completed" // payload: evolution.GenerationReport
	EventTypeRunCompleted EventType = "run_completed"        // payload: evolution.BestSolutionRecord
)

// Event is the envelope published for every run notification
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Handler is a callback for received events
type Handler func(evt *Event) error

// Config configures the publisher
type Config struct {
	URL    string
	Prefix string
	Name   string // client connection name
}

// Publisher sends run events to NATS. It implements evolution.Observer.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher connects to NATS
func NewPublisher(config Config) (*Publisher, error) {
	if config.Name == "" {
		config.Name = "evolver"
	}

	nc, err := nats.Connect(
		config.URL,
		nats.Name(config.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	prefix := strings.TrimSuffix(config.Prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	log.Info().
		Str("nats_url", config.URL).
		Str("prefix", prefix).
		Msg("Event publisher initialized")

	return &Publisher{nc: nc, prefix: prefix}, nil
}

// Subject returns the subject an event type is published on.
// Pattern: {prefix}.run.{type}
func (p *Publisher) Subject(eventType EventType) string {
	return fmt.Sprintf("%s.run.%s", p.prefix, eventType)
}

// Publish sends an event with payload
func (p *Publisher) Publish(ctx context.Context, eventType EventType, runID string, payload interface{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.nc.IsConnected() {
		return fmt.Errorf("event publisher not connected")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	evt := Event{
		ID:        uuid.New(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   body,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.Subject(eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("event_id", evt.ID.String()).
		Str("type", string(eventType)).
		Str("run_id", runID).
		Str("subject", subject).
		Msg("Published event")

	return nil
}

// GenerationCompleted publishes a generation report
func (p *Publisher) GenerationCompleted(ctx context.Context, report evolution.GenerationReport) {
	err := p.Publish(context.WithoutCancel(ctx), EventTypeGeneration, report.RunID, report)
	metrics.RecordEventPublished(string(EventTypeGeneration), err)
	if err != nil {
		log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to publish generation event")
	}
}

// RunCompleted publishes the persisted best solution
func (p *Publisher) RunCompleted(ctx context.Context, record *evolution.BestSolutionRecord) {
	if record == nil {
		return
	}
	err := p.Publish(context.WithoutCancel(ctx), EventTypeRunCompleted, record.RunID, record)
	metrics.RecordEventPublished(string(EventTypeRunCompleted), err)
	if err != nil {
		log.Warn().Err(err).Str("run_id", record.RunID).Msg("Failed to publish run completed event")
	}
}

// Subscribe delivers every run event to handler
func (p *Publisher) Subscribe(handler Handler) (*nats.Subscription, error) {
	subject := fmt.Sprintf("%s.run.>", p.prefix)

	sub, err := p.nc.Subscribe(subject, func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Failed to unmarshal event")
			return
		}
		if err := handler(&evt); err != nil {
			log.Error().
				Err(err).
				Str("event_id", evt.ID.String()).
				Str("type", string(evt.Type)).
				Msg("Event handler error")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	log.Info().Str("subject", subject).Msg("Subscribed to run events")
	return sub, nil
}

// Flush waits until the server has processed all published events
func (p *Publisher) Flush(timeout time.Duration) error {
	return p.nc.FlushTimeout(timeout)
}

// IsConnected reports the NATS connection state
func (p *Publisher) IsConnected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains pending events and closes the connection
func (p *Publisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() || p.nc.IsDraining() {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	log.Info().Msg("Event publisher closed")
	return nil
}
