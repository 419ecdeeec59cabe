package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewMetrics("blueprint")

	m.RecordUpload(1024, nil)
	m.RecordUpload(0, errors.New("too large"))
	m.RecordSave(3, nil)
	m.RecordPlacement("resistor")
	m.RecordPlacement("resistor")
	m.ObserveCommand("SaveNodesCommand", 5*time.Millisecond, nil)
	m.ObserveHTTP("/api/v2/diagrams/{id}", http.MethodGet, 200, time.Millisecond)
	m.SetSessions(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("error")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.UploadBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Placements.WithLabelValues("resistor")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenSessions))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "blueprint_command_duration_seconds_count")
	assert.True(t, strings.Contains(body, `route="/api/v2/diagrams/{id}"`))
}

type fakeCloudWatch struct {
	calls [][]string
	err   error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	names := make([]string, 0, len(in.MetricData))
	for _, d := range in.MetricData {
		names = append(names, aws.ToString(d.MetricName))
	}
	f.calls = append(f.calls, names)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestCloudWatchBatches(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := NewCloudWatchMetrics(client, "Blueprint", zap.NewNop())

	for i := 0; i < 25; i++ {
		cw.RecordPlacement("lamp")
	}
	cw.RecordSave(4, nil)
	assert.Equal(t, 27, cw.Pending())

	require.NoError(t, cw.Flush(context.Background()))
	require.Len(t, client.calls, 2)
	assert.Len(t, client.calls[0], 20)
	assert.Equal(t, []string{"SymbolPlacements", "SymbolPlacements", "SymbolPlacements", "SymbolPlacements", "SymbolPlacements", "DiagramSaves", "SavedNodes"}, client.calls[1])
	assert.Equal(t, 0, cw.Pending())

	client.err = errors.New("throttled")
	cw.RecordUpload(10, nil)
	assert.Error(t, cw.Flush(context.Background()))
	assert.Equal(t, 0, cw.Pending())
}

func TestBusinessMetricsFanOut(t *testing.T) {
	prom := NewMetrics("fan")
	cw := NewCloudWatchMetrics(&fakeCloudWatch{}, "Fan", zap.NewNop())
	fan := BusinessMetrics{prom, cw}

	fan.RecordSave(2, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.Saves.WithLabelValues("ok")))
	assert.Equal(t, 2, cw.Pending())
}

func TestDisabledTracerRunsUntraced(t *testing.T) {
	tracer := NewTracer("blueprint", false)
	called := false
	err := tracer.TraceFunction(context.Background(), "work", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	tracer.Middleware(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
