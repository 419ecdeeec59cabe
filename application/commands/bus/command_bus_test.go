package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingCommand struct{ Value string }

func (c pingCommand) Validate() error {
	if c.Value == "" {
		return errors.New("value is required")
	}
	return nil
}

type otherCommand struct{}

func (otherCommand) Validate() error { return nil }

type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type recordingMetrics struct {
	types []string
	errs  []error
}

func (m *recordingMetrics) ObserveCommand(commandType string, _ time.Duration, err error) {
	m.types = append(m.types, commandType)
	m.errs = append(m.errs, err)
}

func echo() CommandHandler {
	return CommandHandlerFunc(func(_ context.Context, cmd Command) (interface{}, error) {
		return cmd.(pingCommand).Value, nil
	})
}

func TestCommandBus_Dispatch(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(pingCommand{}, echo()))

	result, err := b.Dispatch(context.Background(), pingCommand{Value: "pong"})
	require.NoError(t, err)
	assert.Equal(t, "pong", result)

	assert.NoError(t, b.Send(context.Background(), pingCommand{Value: "again"}))
}

func TestCommandBus_RejectsDuplicateRegistration(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(pingCommand{}, echo()))
	assert.Error(t, b.Register(pingCommand{}, echo()))
}

func TestCommandBus_ValidatesBeforeHandling(t *testing.T) {
	called := false
	b := NewCommandBus()
	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		called = true
		return nil, nil
	})))

	_, err := b.Dispatch(context.Background(), pingCommand{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command validation failed")
	assert.False(t, called)
}

func TestCommandBus_UnknownCommand(t *testing.T) {
	b := NewCommandBus()
	_, err := b.Dispatch(context.Background(), otherCommand{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestCommandBus_WrapsHandlerErrors(t *testing.T) {
	cause := errors.New("storage down")
	b := NewCommandBus()
	require.NoError(t, b.Register(otherCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		return nil, cause
	})))

	_, err := b.Dispatch(context.Background(), otherCommand{})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "command handler failed")
}

func TestCommandBus_Middleware(t *testing.T) {
	logger := &recordingLogger{}
	metrics := &recordingMetrics{}
	cause := errors.New("nope")

	b := NewCommandBus(LoggingMiddleware(logger), MetricsMiddleware(metrics))
	require.NoError(t, b.Register(pingCommand{}, echo()))
	require.NoError(t, b.Register(otherCommand{}, CommandHandlerFunc(func(context.Context, Command) (interface{}, error) {
		return nil, cause
	})))

	_, err := b.Dispatch(context.Background(), pingCommand{Value: "x"})
	require.NoError(t, err)
	_, err = b.Dispatch(context.Background(), otherCommand{})
	require.Error(t, err)

	assert.Equal(t, []string{"Command succeeded"}, logger.infos)
	assert.Equal(t, []string{"Command failed"}, logger.errors)
	assert.Equal(t, []string{"pingCommand", "otherCommand"}, metrics.types)
	assert.NoError(t, metrics.errs[0])
	assert.ErrorIs(t, metrics.errs[1], cause)
}

func TestPipeline_AppliesInOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	h := NewPipeline(tag("outer"), tag("inner")).Execute(echo())
	_, err := h.Handle(context.Background(), pingCommand{Value: "v"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}
