package observability

import (
	"context"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/strategy/ctxmissing"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer records X-Ray subsegments. A disabled tracer runs the traced code
// and records nothing, and so does an enabled one whose context carries no
// segment, such as a background save.
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

// ConfigureTracing sets the process wide X-Ray options. Calls without a
// segment in their context are ignored rather than logged.
func ConfigureTracing(version string) error {
	return xray.Configure(xray.Config{
		ServiceVersion:         version,
		ContextMissingStrategy: ctxmissing.NewDefaultIgnoreErrorStrategy(),
	})
}

// Enabled reports whether the tracer records anything
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// StartSubsegment starts a new subsegment within an existing segment. The
// returned segment is nil when there is nothing to attach it to.
func (t *Tracer) StartSubsegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	if !t.Enabled() || xray.GetSegment(ctx) == nil {
		return ctx, nil
	}
	return xray.BeginSubsegment(ctx, name)
}

// Trace wraps fn in a subsegment and records its error
func (t *Tracer) Trace(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, seg := t.StartSubsegment(ctx, name)
	err := fn(ctx)
	if seg != nil {
		seg.Close(err)
	}
	return err
}

// Annotate adds an indexed annotation to the current segment
func (t *Tracer) Annotate(ctx context.Context, key, value string) {
	if !t.Enabled() {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}

// RecordError records an error in the current segment
func (t *Tracer) RecordError(ctx context.Context, err error) {
	if !t.Enabled() || err == nil {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddError(err)
	}
}

// Middleware opens a segment per HTTP request, named after the service
func (t *Tracer) Middleware(next http.Handler) http.Handler {
	if !t.Enabled() {
		return next
	}
	return xray.Handler(xray.NewFixedSegmentNamer(t.serviceName), next)
}
