package messaging

import (
	"context"
	"errors"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/events"

	"go.uber.org/zap"
)

// NoopPublisher drops events after logging them at debug level
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a publisher that discards events
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *NoopPublisher) PublishBatch(_ context.Context, domainEvents []events.DomainEvent) error {
	for _, e := range domainEvents {
		p.logger.Debug("Event", zap.String("type", e.GetEventType()), zap.String("aggregate", e.GetAggregateID()))
	}
	return nil
}

// FanOut publishes to every publisher and joins their errors
type FanOut []ports.EventPublisher

func (f FanOut) Publish(ctx context.Context, event events.DomainEvent) error {
	return f.PublishBatch(ctx, []events.DomainEvent{event})
}

func (f FanOut) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishBatch(ctx, domainEvents); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
