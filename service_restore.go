package utsavAuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sanghutsav/utsavAuth/internal/backend"
	"github.com/sanghutsav/utsavAuth/internal/logging"
)

// RestoreSession asks the backend whether the stored session is still accepted, by
// posting the record to the registration-information endpoint.
//
// Any error response clears the session and returns false. When the backend cannot be
// reached the session is cleared as well, unless Session.KeepSessionOnTransportError is
// set. No stored token means false without a request.
func (s *Service) RestoreSession(ctx context.Context) bool {
	if !s.ready() {
		return false
	}
	ctx, _ = logging.EnsureCorrelationID(ctx)
	log := s.log(ctx)

	rec := s.loadRecord(ctx)
	if rec == nil {
		return false
	}
	if s.config.Session.RejectExpiredTokens && s.inspector.Expired(rec.Token) {
		s.metrics.Inc(MetricExpiredTokenRejected)
		s.dropSession(ctx, rec.Username, "token expired")
		return false
	}

	start := time.Now()
	_, err := s.backend.RegistrationInfo(ctx, rec)
	s.timeBackend(start)
	if err == nil {
		s.metrics.Inc(MetricRestoreSuccess)
		s.emitAudit(ctx, AuditRestore, rec.Username, true, nil, nil)
		return true
	}

	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		s.metrics.Inc(MetricRestoreRejected)
		log.Info("stored session rejected", slog.Int("status", statusErr.Status))
		s.emitAudit(ctx, AuditRestore, rec.Username, false, err, nil)
		s.dropSession(ctx, rec.Username, "rejected")
		return false
	}

	s.metrics.Inc(MetricRestoreTransportError)
	log.Warn("session validation unreachable", slog.String("error", err.Error()))
	s.emitAudit(ctx, AuditRestore, rec.Username, false, err, nil)
	if !s.config.Session.KeepSessionOnTransportError {
		s.dropSession(ctx, rec.Username, "unreachable")
	}
	return false
}

func (s *Service) dropSession(ctx context.Context, username, reason string) {
	err := s.clearSession(ctx)
	if err != nil {
		s.log(ctx).Error("clear session failed", slog.String("error", err.Error()))
	}
	s.emitAudit(ctx, AuditSessionCleared, username, err == nil, err, map[string]string{"reason": reason})
}

// PersonalInfo fetches the registration profile of the signed-in user.
func (s *Service) PersonalInfo(ctx context.Context) (*PersonalInfo, error) {
	if !s.ready() {
		return nil, ErrServiceNotReady
	}
	ctx, _ = logging.EnsureCorrelationID(ctx)

	rec := s.authenticatedRecord(ctx)
	if rec == nil {
		return nil, ErrNoSession
	}

	start := time.Now()
	resp, err := s.backend.RegistrationInfo(ctx, rec)
	s.timeBackend(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersonalInfoUnavailable, err)
	}

	var info PersonalInfo
	if err := resp.Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPersonalInfoUnavailable, err)
	}
	return &info, nil
}

// SavePersonalInfo sends an updated profile for the signed-in user.
func (s *Service) SavePersonalInfo(ctx context.Context, info PersonalInfo) error {
	if !s.ready() {
		return ErrServiceNotReady
	}
	ctx, _ = logging.EnsureCorrelationID(ctx)

	rec := s.authenticatedRecord(ctx)
	if rec == nil {
		return ErrNoSession
	}

	start := time.Now()
	err := s.backend.UpdateRegistrationInfo(ctx, info)
	s.timeBackend(start)
	if err != nil {
		s.emitAudit(ctx, AuditPersonalInfoSet, rec.Username, false, err, nil)
		return fmt.Errorf("%w: %v", ErrPersonalInfoUnavailable, err)
	}
	s.metrics.Inc(MetricPersonalInfoSaved)
	s.emitAudit(ctx, AuditPersonalInfoSet, rec.Username, true, nil, nil)
	return nil
}

// RegisterUser submits a multipart account-creation form. It touches no session state.
func (s *Service) RegisterUser(ctx context.Context, form RegistrationForm) error {
	if !s.ready() {
		return ErrServiceNotReady
	}
	ctx, _ = logging.EnsureCorrelationID(ctx)

	out := backend.Form{
		Fields: make([]backend.Field, 0, len(form.Fields)),
		Files:  make([]backend.File, 0, len(form.Files)),
	}
	for _, f := range form.Fields {
		out.Fields = append(out.Fields, backend.Field{Name: f.Name, Value: f.Value})
	}
	for _, f := range form.Files {
		out.Files = append(out.Files, backend.File{Field: f.Field, Filename: f.Filename, ContentType: f.ContentType, Content: f.Content})
	}

	start := time.Now()
	err := s.backend.CreateUser(ctx, out)
	s.timeBackend(start)
	if err != nil {
		s.metrics.Inc(MetricRegistrationFailure)
		s.emitAudit(ctx, AuditRegistration, "", false, err, nil)

		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && backend.IsClientError(statusErr.Status) {
			return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	s.metrics.Inc(MetricRegistrationSuccess)
	s.emitAudit(ctx, AuditRegistration, "", true, nil, nil)
	return nil
}

// UsersField encodes registrants as the JSON "users" field the backend expects.
func UsersField(users any) (FormField, error) {
	data, err := json.Marshal(users)
	if err != nil {
		return FormField{}, err
	}
	return FormField{Name: "users", Value: string(data)}, nil
}
