package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blueprint-editor/domain/events"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Conn is the part of a NATS connection the publisher uses
type Conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSPublisher publishes each event on <subject>.<event type>
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher creates a publisher on an open connection
func NewNATSPublisher(conn Conn, subject string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// ConnectNATS dials the server with reconnect handling
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(Source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Subject returns the subject an event is published on
func (p *NATSPublisher) Subject(event events.DomainEvent) string {
	return p.subject + "." + event.GetEventType()
}

// Publish sends a single event
func (p *NATSPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends the events and flushes once
func (p *NATSPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	for _, event := range domainEvents {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", event.GetEventType(), err)
		}
		msg := nats.NewMsg(p.Subject(event))
		msg.Data = data
		msg.Header.Set("Event-Type", event.GetEventType())
		msg.Header.Set("Aggregate-Id", event.GetAggregateID())
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("failed to publish %s event: %w", event.GetEventType(), err)
		}
	}

	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}

	p.logger.Debug("Events published to NATS", zap.Int("count", len(domainEvents)), zap.String("subject", p.subject))
	return nil
}
