package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func created(n int) []events.DomainEvent {
	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewDiagramCreated(int64(i+1), "plan.png", "/blobs/plan.png", ts)
	}
	return out
}

func TestEventBridgeBatchesByTen(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 10
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		e := in.Entries[0]
		return len(in.Entries) == 2 &&
			aws.ToString(e.Source) == Source &&
			aws.ToString(e.DetailType) == events.TypeDiagramCreated &&
			aws.ToString(e.EventBusName) == "bus"
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewEventBridgePublisher(client, "bus", zap.NewNop())
	require.NoError(t, p.PublishBatch(context.Background(), created(12)))
	client.AssertExpectations(t)
}

func TestEventBridgeReportsFailedEntries(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("Throttled")}},
	}, nil)

	p := NewEventBridgePublisher(client, "bus", zap.NewNop())
	err := p.Publish(context.Background(), created(1)[0])
	assert.EqualError(t, err, "1 events failed to publish")
}

type fakeConn struct {
	msgs    []*nats.Msg
	flushes int
	err     error
}

func (c *fakeConn) PublishMsg(msg *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.flushes++
	return nil
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "blueprint.events", zap.NewNop())

	require.NoError(t, p.PublishBatch(context.Background(), created(2)))
	require.Len(t, conn.msgs, 2)
	assert.Equal(t, "blueprint.events.diagram.created", conn.msgs[0].Subject)
	assert.Equal(t, "1", conn.msgs[0].Header.Get("Aggregate-Id"))
	assert.Contains(t, string(conn.msgs[1].Data), `"diagram_id":2`)
	assert.Equal(t, 1, conn.flushes)

	conn.err = nats.ErrConnectionClosed
	assert.ErrorIs(t, p.Publish(context.Background(), created(1)[0]), nats.ErrConnectionClosed)
}

type recording struct {
	got []events.DomainEvent
	err error
}

func (r *recording) Publish(ctx context.Context, e events.DomainEvent) error {
	return r.PublishBatch(ctx, []events.DomainEvent{e})
}

func (r *recording) PublishBatch(_ context.Context, evts []events.DomainEvent) error {
	r.got = append(r.got, evts...)
	return r.err
}

func TestFanOutReachesEveryPublisher(t *testing.T) {
	a, b := &recording{err: errors.New("down")}, &recording{}
	fan := FanOut{a, NewNoopPublisher(zap.NewNop()), b}
	var _ ports.EventPublisher = fan

	err := fan.PublishBatch(context.Background(), created(3))
	assert.ErrorContains(t, err, "down")
	assert.Len(t, a.got, 3)
	assert.Len(t, b.got, 3)
}
