package execution

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of engine spans.
const TracerName = "github.com/dshills/autoflow/pkg/execution"

// Span attribute keys.
const (
	WorkflowIDKey   = "autoflow.workflow.id"
	RunIDKey        = "autoflow.run.id"
	NodeIDKey       = "autoflow.node.id"
	NodeTypeKey     = "autoflow.node.type"
	NodeCategoryKey = "autoflow.node.category"
	RunStatusKey    = "autoflow.run.status"
)

func setSpanError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
