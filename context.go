package utsavAuth

import (
	"context"

	"github.com/sanghutsav/utsavAuth/internal/logging"
)

// WithCorrelationID attaches id to ctx. Service operations log and audit under it;
// without one they generate a fresh uuid per call.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return logging.WithCorrelationID(ctx, id)
}

// CorrelationIDFromContext returns the correlation ID on ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return logging.CorrelationIDFromContext(ctx)
}
