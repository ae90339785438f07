package utsavAuth

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sanghutsav/utsavAuth/internal/backend"
	"github.com/sanghutsav/utsavAuth/internal/logging"
	"github.com/sanghutsav/utsavAuth/jwt"
	"github.com/sanghutsav/utsavAuth/session"
)

// Service owns the session: it is the only writer of both storage tiers and the source
// of the bearer token for outgoing requests. All methods are safe for concurrent use.
type Service struct {
	config     Config
	durable    session.Store
	mirror     session.Store
	backend    *backend.Client
	httpClient *http.Client
	navigator  Navigator
	inspector  *jwt.Inspector
	logger     *slog.Logger
	metrics    *Metrics
	audit      *auditDispatcher
	closed     atomic.Bool
}

// HealthStatus is an on-demand durable tier health result.
type HealthStatus struct {
	DurableAvailable bool
	DurableLatency   time.Duration
	// BreakerState is the backend circuit breaker state: closed, half-open or open.
	BreakerState string
}

type pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Close shuts the Service down, giving queued audit events up to Audit.DrainTimeout to
// reach the sink. Storage clients passed to the Builder stay open.
func (s *Service) Close() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Audit.DrainTimeout)
	defer cancel()
	_ = s.Shutdown(ctx)
}

// Shutdown marks the Service closed and delivers queued audit events until ctx ends.
// It returns ctx's error when events had to be abandoned; they are counted in
// AuditDropped. Calling it again is a no-op.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.closed.Store(true)
	err := s.audit.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("audit events abandoned at shutdown",
			slog.Any("dropped_by_type", s.audit.DroppedByType()),
			slog.String("error", err.Error()))
	}
	return err
}

func (s *Service) ready() bool {
	return s != nil && !s.closed.Load() && s.durable != nil
}

// HTTPClient returns the client whose requests carry the session's bearer token.
func (s *Service) HTTPClient() *http.Client {
	if s == nil {
		return nil
	}
	return s.httpClient
}

// Config returns a copy of the configuration the Service was built with.
func (s *Service) Config() Config {
	return cloneConfig(s.config)
}

// LoginRoute and HomeRoute return the configured navigation targets.
func (s *Service) LoginRoute() string { return s.config.Navigation.LoginRoute }

func (s *Service) HomeRoute() string { return s.config.Navigation.HomeRoute }

// AuditDropped returns how many audit events never reached the sink.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type.
func (s *Service) AuditDroppedByType() map[string]uint64 {
	if s == nil {
		return map[string]uint64{}
	}
	return s.audit.DroppedByType()
}

func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// Health pings the durable tier when it supports it. Stores without a ping (memory,
// file) report available with zero latency.
func (s *Service) Health(ctx context.Context) HealthStatus {
	if !s.ready() {
		return HealthStatus{}
	}
	out := HealthStatus{DurableAvailable: true, BreakerState: s.backend.BreakerState().String()}
	if p, ok := s.durable.(pinger); ok {
		latency, err := p.Ping(ctx)
		out.DurableLatency = latency
		out.DurableAvailable = err == nil
	}
	return out
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, logging.FromContext(ctx, s.logger))
}

func (s *Service) emitAudit(ctx context.Context, eventType, username string, success bool, err error, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		Username:      username,
		DeviceID:      s.config.Session.DeviceID,
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		Success:       success,
		Metadata:      metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.audit.Emit(ctx, event)
}

func (s *Service) timeBackend(start time.Time) {
	s.metrics.Observe(MetricBackendLatency, time.Since(start))
}
