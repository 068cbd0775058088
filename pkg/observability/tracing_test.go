package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-xray-sdk-go/strategy/ctxmissing"
	"github.com/aws/aws-xray-sdk-go/strategy/sampling"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingEmitter struct {
	mu       sync.Mutex
	segments []*xray.Segment
}

func (e *capturingEmitter) Emit(seg *xray.Segment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.segments = append(e.segments, seg)
}

func (e *capturingEmitter) RefreshEmitterWithAddress(*net.UDPAddr) {}

type sampleAll struct{}

func (sampleAll) ShouldTrace(*sampling.Request) *sampling.Decision {
	return &sampling.Decision{Sample: true}
}

// tracedContext returns a context carrying an open root segment
func tracedContext(t *testing.T) (context.Context, *xray.Segment) {
	t.Helper()
	ctx, err := xray.ContextWithConfig(context.Background(), xray.Config{
		Emitter:                &capturingEmitter{},
		SamplingStrategy:       sampleAll{},
		ContextMissingStrategy: ctxmissing.NewDefaultIgnoreErrorStrategy(),
	})
	require.NoError(t, err)
	ctx, root := xray.BeginSegment(ctx, "flowboard")
	t.Cleanup(func() { root.Close(nil) })
	return ctx, root
}

func TestTraceRecordsSubsegment(t *testing.T) {
	tracer := NewTracer("flowboard", true)
	ctx, root := tracedContext(t)
	boom := errors.New("boom")

	var sub *xray.Segment
	err := tracer.Trace(ctx, "store.load", func(ctx context.Context) error {
		sub = xray.GetSegment(ctx)
		tracer.Annotate(ctx, "board_id", "b1")
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NotNil(t, sub)
	assert.NotSame(t, root, sub)
	assert.Equal(t, "store.load", sub.Name)
	assert.True(t, sub.Fault)
	assert.Equal(t, "b1", sub.Annotations["board_id"])
	assert.False(t, root.Fault)
}

func TestTraceWithoutSegment(t *testing.T) {
	tests := []struct {
		name   string
		tracer *Tracer
		traced bool
	}{
		{name: "disabled tracer", tracer: NewTracer("flowboard", false), traced: true},
		{name: "no segment in context", tracer: NewTracer("flowboard", true)},
		{name: "nil tracer", tracer: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			var root *xray.Segment
			if tt.traced {
				ctx, root = tracedContext(t)
			}

			ran := false
			err := tt.tracer.Trace(ctx, "store.save", func(inner context.Context) error {
				ran = true
				assert.Same(t, root, xray.GetSegment(inner))
				tt.tracer.Annotate(inner, "board_id", "b1")
				tt.tracer.RecordError(inner, errors.New("ignored"))
				return nil
			})

			require.NoError(t, err)
			assert.True(t, ran)
			if root != nil {
				assert.Empty(t, root.Annotations)
				assert.False(t, root.Fault)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	tracer := NewTracer("flowboard", true)
	ctx, root := tracedContext(t)

	tracer.RecordError(ctx, nil)
	assert.False(t, root.Fault)

	tracer.RecordError(ctx, errors.New("store unavailable"))
	assert.True(t, root.Fault)
}

func TestTracingMiddleware(t *testing.T) {
	var seen *xray.Segment
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = xray.GetSegment(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("enabled", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		NewTracer("flowboard", true).Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/boards", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "flowboard", seen.Name)
	})

	t.Run("disabled", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		NewTracer("flowboard", false).Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/boards", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Nil(t, seen)
	})
}
