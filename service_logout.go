package utsavAuth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanghutsav/utsavAuth/internal/logging"
)

// Logout removes the session from both tiers and navigates to the login route.
//
// Navigation happens even when clearing storage fails, and it is not cancelled with
// ctx. A failed clear is reported in the result rather than as an error so the caller
// can decide whether to tell the user. A closed Service clears nothing but still
// navigates.
func (s *Service) Logout(ctx context.Context) LogoutResult {
	if !s.ready() {
		if s != nil && s.navigator != nil {
			s.navigate(ctx, s.config.Navigation.LoginRoute)
		}
		return LogoutResult{Err: ErrServiceNotReady}
	}
	ctx, _ = logging.EnsureCorrelationID(ctx)
	log := s.log(ctx)

	username := ""
	if rec := s.CachedSession(); rec != nil {
		username = rec.Username
	}

	result := LogoutResult{Cleared: true}
	if err := s.clearSession(ctx); err != nil {
		result = LogoutResult{Err: fmt.Errorf("%w: %v", ErrSessionClearFailed, err)}
		s.metrics.Inc(MetricLogoutClearFailure)
		log.Error("clear session failed", slog.String("error", err.Error()))
	}
	s.metrics.Inc(MetricLogout)
	s.emitAudit(ctx, AuditLogout, username, result.Cleared, result.Err, nil)

	s.navigate(ctx, s.config.Navigation.LoginRoute)
	return result
}

func (s *Service) navigate(ctx context.Context, route string) {
	if err := s.navigator.Navigate(context.WithoutCancel(ctx), route); err != nil {
		s.log(ctx).Warn("navigation failed", slog.String("route", route), slog.String("error", err.Error()))
	}
}
