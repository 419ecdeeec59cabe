package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"blueprint-editor/application/ports"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the storage circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default storage breaker settings
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerStore guards a blob store with a circuit breaker. Validation and
// not-found errors do not count as failures.
type BreakerStore struct {
	next ports.BlobStore
	cb   *gobreaker.CircuitBreaker
	name string
}

// NewBreakerStore wraps next
func NewBreakerStore(next ports.BlobStore, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsValidation(err) || pkgerrors.IsNotFound(err) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &BreakerStore{next: next, cb: cb, name: cfg.Name}
}

// State reports the breaker state
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.NewUnavailableError(b.name).WithCause(err)
	}
	return res, err
}

func (b *BreakerStore) Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (string, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.Put(ctx, pathname, body, size, contentType)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (b *BreakerStore) Delete(ctx context.Context, pathname string) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, pathname)
	})
	return err
}

func (b *BreakerStore) List(ctx context.Context) ([]ports.BlobObject, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]ports.BlobObject), nil
}

func (b *BreakerStore) Open(ctx context.Context, pathname string) (io.ReadCloser, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.Open(ctx, pathname)
	})
	if err != nil {
		return nil, err
	}
	return res.(io.ReadCloser), nil
}

func (b *BreakerStore) PathnameFromURL(url string) (string, bool) {
	return b.next.PathnameFromURL(url)
}
