package utsavAuth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sanghutsav/utsavAuth/session"
)

// IsAuthenticated is the authoritative check: it reads the durable tier and reports
// whether a record with a non-empty token exists. With Session.RejectExpiredTokens set,
// JWTs whose exp has passed, or whose signature fails against Session.TokenVerifyKey,
// also count as signed out.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	if !s.ready() {
		return false
	}
	s.metrics.Inc(MetricAuthCheck)
	if s.authenticatedRecord(ctx) == nil {
		s.metrics.Inc(MetricAuthCheckDenied)
		return false
	}
	return true
}

// IsAuthenticatedCached reads only the in-memory mirror. It is not authoritative: after
// a cold start it reports false until an authoritative read has run.
func (s *Service) IsAuthenticatedCached() bool {
	return s.CachedSession() != nil
}

// CurrentSession reads the record from the durable tier and refreshes the mirror with
// it. It returns nil when the record is missing, has no token, or cannot be parsed;
// storage problems are logged, never returned.
func (s *Service) CurrentSession(ctx context.Context) *session.Record {
	if !s.ready() {
		return nil
	}
	return s.loadRecord(ctx).Clone()
}

// CachedSession returns the mirror's record without I/O, or nil.
func (s *Service) CachedSession() *session.Record {
	if !s.ready() {
		return nil
	}
	value, ok := s.peekMirror(session.KeyUserDetails)
	if !ok {
		return nil
	}
	rec, err := session.DecodeRecord(value)
	if err != nil || !rec.Authenticated() {
		return nil
	}
	return rec
}

// ResourcePermissions reads the permission list from the durable tier and refreshes the
// mirror. Missing or unreadable lists yield an empty list.
func (s *Service) ResourcePermissions(ctx context.Context) session.PermissionList {
	if !s.ready() {
		return session.PermissionList{}
	}
	value, found, err := s.durable.Get(ctx, session.KeyResourcesAccess)
	if err != nil {
		s.log(ctx).Warn("read permissions failed", slog.String("error", err.Error()))
		return session.PermissionList{}
	}
	if !found {
		s.dropMirror(ctx, session.KeyResourcesAccess)
		return session.PermissionList{}
	}
	perms, err := session.DecodePermissions(value)
	if err != nil {
		s.metrics.Inc(MetricSessionCorrupt)
		s.log(ctx).Warn("stored permissions corrupt", slog.String("error", err.Error()))
		s.dropMirror(ctx, session.KeyResourcesAccess)
		return session.PermissionList{}
	}
	s.writeMirror(ctx, session.KeyResourcesAccess, value)
	return perms
}

// CachedResourcePermissions returns the mirror's permission list without I/O.
func (s *Service) CachedResourcePermissions() session.PermissionList {
	if !s.ready() {
		return session.PermissionList{}
	}
	value, ok := s.peekMirror(session.KeyResourcesAccess)
	if !ok {
		return session.PermissionList{}
	}
	perms, err := session.DecodePermissions(value)
	if err != nil {
		return session.PermissionList{}
	}
	return perms
}

// BearerToken is the token source for outgoing requests. It resolves the session from
// the durable tier on every call.
func (s *Service) BearerToken(ctx context.Context) (string, bool) {
	if !s.ready() {
		return "", false
	}
	rec := s.authenticatedRecord(ctx)
	if rec == nil {
		return "", false
	}
	return rec.Token, true
}

// authenticatedRecord is loadRecord with the Session.RejectExpiredTokens check applied.
func (s *Service) authenticatedRecord(ctx context.Context) *session.Record {
	return s.syncRecord(ctx, true)
}

// loadRecord returns the authenticated durable record, or nil.
func (s *Service) loadRecord(ctx context.Context) *session.Record {
	return s.syncRecord(ctx, false)
}

// syncRecord reads the durable record and brings the mirror in line with the answer: an
// accepted record is written through, a missing or rejected one is removed.
func (s *Service) syncRecord(ctx context.Context, checkToken bool) *session.Record {
	rec, value, ok := s.readRecord(ctx)
	if !ok {
		return nil
	}
	if rec != nil && checkToken && s.config.Session.RejectExpiredTokens && s.inspector.Expired(rec.Token) {
		s.metrics.Inc(MetricExpiredTokenRejected)
		rec = nil
	}
	if rec == nil {
		s.dropMirror(ctx, session.KeyUserDetails)
		return nil
	}
	s.writeMirror(ctx, session.KeyUserDetails, value)
	return rec
}

// readRecord reads and decodes the durable record. ok is false only when the durable
// tier could not be read, in which case the mirror is left alone. A missing, corrupt or
// token-less record is reported as rec == nil with ok true.
func (s *Service) readRecord(ctx context.Context) (rec *session.Record, value string, ok bool) {
	value, found, err := s.durable.Get(ctx, session.KeyUserDetails)
	if err != nil {
		s.log(ctx).Warn("read session failed", slog.String("error", err.Error()))
		return nil, "", false
	}
	if !found {
		return nil, "", true
	}

	rec, err = session.DecodeRecord(value)
	if err != nil {
		s.metrics.Inc(MetricSessionCorrupt)
		s.log(ctx).Warn("stored session corrupt", slog.String("error", err.Error()))
		s.emitAudit(ctx, AuditSessionCorrupt, "", false, err, nil)
		return nil, "", true
	}
	if !rec.Authenticated() {
		return nil, "", true
	}
	return rec, value, true
}

func (s *Service) peekMirror(key string) (string, bool) {
	reader, ok := s.mirror.(session.SyncReader)
	if !ok {
		return "", false
	}
	return reader.Peek(key)
}

func (s *Service) writeMirror(ctx context.Context, key, value string) {
	if err := s.mirror.Set(ctx, key, value); err != nil {
		s.log(ctx).Warn("mirror write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *Service) dropMirror(ctx context.Context, keys ...string) {
	if err := s.mirror.Delete(ctx, keys...); err != nil {
		s.log(ctx).Warn("mirror delete failed", slog.String("error", err.Error()))
	}
}

// persist writes the permission list (or removes a stale one), then the record, to the
// durable tier and mirrors both. If the record write fails both keys are removed, so a
// failed login never leaves a session behind.
func (s *Service) persist(ctx context.Context, rec *session.Record, perms session.PermissionList, hasPerms bool) error {
	recValue, err := session.EncodeRecord(rec)
	if err != nil {
		return err
	}
	var permValue string
	if hasPerms {
		if permValue, err = session.EncodePermissions(perms); err != nil {
			return err
		}
	}

	if hasPerms {
		err = s.durable.Set(ctx, session.KeyResourcesAccess, permValue)
	} else {
		err = s.durable.Delete(ctx, session.KeyResourcesAccess)
	}
	if err != nil {
		return err
	}
	if err := s.durable.Set(ctx, session.KeyUserDetails, recValue); err != nil {
		if rbErr := s.durable.Delete(ctx, session.KeyUserDetails, session.KeyResourcesAccess); rbErr != nil {
			s.log(ctx).Error("roll back partial session failed", slog.String("error", rbErr.Error()))
		}
		s.dropMirror(ctx, session.KeyUserDetails, session.KeyResourcesAccess)
		return err
	}

	s.writeMirror(ctx, session.KeyUserDetails, recValue)
	if hasPerms {
		s.writeMirror(ctx, session.KeyResourcesAccess, permValue)
	} else {
		s.dropMirror(ctx, session.KeyResourcesAccess)
	}
	return nil
}

// clearSession removes both keys from the durable tier and empties the mirror. Both
// steps always run; their errors are joined.
func (s *Service) clearSession(ctx context.Context) error {
	var errs []error
	if err := s.durable.Delete(ctx, session.KeyUserDetails, session.KeyResourcesAccess); err != nil {
		errs = append(errs, err)
	}
	if err := s.mirror.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
