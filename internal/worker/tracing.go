package worker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global provider; spans are dropped unless telemetry
// installed an SDK provider.
var tracer trace.Tracer = otel.Tracer("thinkchat/internal/worker")

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
