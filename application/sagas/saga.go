package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is a single unit of work in a saga. Execute receives the output of
// the previous step; Compensate receives the output of its own Execute.
type Step struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// State represents the current state of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
	StateFailed       State = "FAILED"
)

// Saga runs steps in order and undoes completed ones, newest first, when a
// later step fails
type Saga struct {
	id            string
	name          string
	steps         []Step
	compensations []func(ctx context.Context) error
	state         State
	logger        *zap.Logger
}

// New creates a saga
func New(name string, logger *zap.Logger) *Saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saga{
		id:     uuid.NewString(),
		name:   name,
		state:  StatePending,
		logger: logger.With(zap.String("saga", name)),
	}
}

// AddStep appends a step
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the saga and returns the last step's output
func (s *Saga) Execute(ctx context.Context, input interface{}) (interface{}, error) {
	s.state = StateRunning
	s.compensations = s.compensations[:0]
	log := s.logger.With(zap.String("saga_id", s.id))
	log.Debug("Starting saga", zap.Int("steps", len(s.steps)))

	data := input
	for i, step := range s.steps {
		result, err := s.runWithRetry(ctx, step, data)
		if err != nil {
			log.Warn("Saga step failed", zap.String("step", step.Name), zap.Int("step_number", i+1), zap.Error(err))
			s.compensate(ctx)
			return nil, fmt.Errorf("%s failed at %s: %w", s.name, step.Name, err)
		}

		if step.Compensate != nil {
			step, stepData := step, result
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return step.Compensate(ctx, stepData)
			})
		}
		data = result
	}

	s.state = StateCompleted
	log.Debug("Saga completed")
	return data, nil
}

func (s *Saga) runWithRetry(ctx context.Context, step Step, data interface{}) (interface{}, error) {
	attempts := step.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

// compensate undoes completed steps in reverse order. A failing
// compensation is logged and the rest still run.
func (s *Saga) compensate(ctx context.Context) {
	s.state = StateCompensating
	failed := false
	for i := len(s.compensations) - 1; i >= 0; i-- {
		if err := s.compensations[i](ctx); err != nil {
			failed = true
			s.logger.Error("Saga compensation failed",
				zap.String("saga_id", s.id),
				zap.Int("compensation", i+1),
				zap.Error(err),
			)
		}
	}
	if failed {
		s.state = StateFailed
		return
	}
	s.state = StateCompensated
}

// State returns the current state of the saga
func (s *Saga) State() State { return s.state }

// ID returns the saga id
func (s *Saga) ID() string { return s.id }

// permanent marks an error that retrying cannot fix
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent wraps err so the saga does not retry the step
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func retryable(err error) bool {
	_, isPermanent := err.(permanent)
	return !isPermanent
}
