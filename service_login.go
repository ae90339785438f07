package utsavAuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sanghutsav/utsavAuth/internal/logging"
	"github.com/sanghutsav/utsavAuth/session"
)

// successStatusCode is the body-level status the backend sends with an accepted login.
const successStatusCode = "200"

// Login submits credentials and, when the backend accepts them, stores the session
// record and permission list in the durable tier and the mirror.
//
// The returned error is nil for a rejected login: the rejection is a normal outcome
// carried in the result, with Err() available for callers that prefer an error. A
// transport or storage failure returns both a result and a wrapped error.
//
// Flow:
//
//	validate -> POST sign-in -> classify -> decode record -> persist -> audit
func (s *Service) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if !s.ready() {
		return LoginResult{Outcome: LoginTransportError}, ErrServiceNotReady
	}
	ctx, _ = logging.EnsureCorrelationID(ctx)
	log := s.log(ctx).With(slog.String("username", creds.Username))

	username := strings.TrimSpace(creds.Username)
	if username == "" {
		s.metrics.Inc(MetricLoginRejected)
		return LoginResult{Outcome: LoginRejected, Message: "username required"}, ErrInvalidCredentials
	}
	password := creds.Password
	if password == "" {
		password = username
	}

	start := time.Now()
	resp, err := s.backend.SignIn(ctx, username, password)
	s.timeBackend(start)
	if err != nil {
		return s.loginTransportFailure(ctx, log, username, LoginResult{}, err)
	}

	result := LoginResult{StatusCode: strconv.Itoa(resp.Status)}
	if resp.Status >= 500 {
		return s.loginTransportFailure(ctx, log, username, result,
			fmt.Errorf("sign-in returned status %d", resp.Status))
	}

	var raw map[string]json.RawMessage
	if decodeErr := json.Unmarshal(resp.Body, &raw); decodeErr != nil {
		if resp.OK() {
			return s.loginTransportFailure(ctx, log, username, result,
				fmt.Errorf("decode sign-in response: %v", decodeErr))
		}
		raw = nil
	}
	result.Raw = raw
	result.Message = bodyMessage(raw)
	if code, ok := bodyStatusCode(raw); ok {
		result.StatusCode = code
	}

	if !resp.OK() || (hasBodyStatus(raw) && result.StatusCode != successStatusCode) {
		result.Outcome = LoginRejected
		s.metrics.Inc(MetricLoginRejected)
		log.Info("login rejected", slog.String("status_code", result.StatusCode))
		s.emitAudit(ctx, AuditLogin, username, false, result.Err(), map[string]string{"status_code": result.StatusCode})
		return result, nil
	}

	rec, err := session.DecodeLoginRecord(resp.Body)
	if err != nil {
		return s.loginTransportFailure(ctx, log, username, result, err)
	}
	if rec.Username == "" {
		rec.Username = username
	}
	if !rec.Authenticated() {
		return s.loginTransportFailure(ctx, log, username, result, errors.New("sign-in response carried no token"))
	}

	perms, hasPerms, err := session.DecodeLoginPermissions(resp.Body)
	if err != nil {
		log.Warn("ignoring malformed permission list", slog.String("error", err.Error()))
		perms, hasPerms = nil, false
	}

	if err := s.persist(ctx, rec, perms, hasPerms); err != nil {
		result.Outcome = LoginStorageError
		s.metrics.Inc(MetricLoginStorageError)
		log.Error("persist session failed", slog.String("error", err.Error()))
		wrapped := fmt.Errorf("%w: %v", ErrSessionPersistFailed, err)
		s.emitAudit(ctx, AuditLogin, username, false, wrapped, nil)
		return result, wrapped
	}

	if perms == nil {
		perms = session.PermissionList{}
	}
	result.Outcome = LoginOK
	result.Session = rec.Clone()
	result.Permissions = perms.Clone()
	s.metrics.Inc(MetricLoginSuccess)
	log.Info("login succeeded", slog.String("user_type", rec.UserType.String()))
	s.emitAudit(ctx, AuditLogin, rec.Username, true, nil, map[string]string{"user_type": rec.UserType.String()})
	return result, nil
}

func (s *Service) loginTransportFailure(ctx context.Context, log *slog.Logger, username string, result LoginResult, cause error) (LoginResult, error) {
	result.Outcome = LoginTransportError
	s.metrics.Inc(MetricLoginTransportError)
	log.Warn("login transport failure", slog.String("error", cause.Error()))
	err := fmt.Errorf("%w: %v", ErrTransport, cause)
	s.emitAudit(ctx, AuditLogin, username, false, err, nil)
	return result, err
}

// Err returns nil for a successful login and an error wrapping ErrLoginRejected for a
// rejected one. Transport and storage outcomes are reported by Login's own error.
func (r LoginResult) Err() error {
	if r.Outcome != LoginRejected {
		return nil
	}
	if r.Message != "" {
		return fmt.Errorf("%w: %s (status %s)", ErrLoginRejected, r.Message, r.StatusCode)
	}
	return fmt.Errorf("%w: status %s", ErrLoginRejected, r.StatusCode)
}

func hasBodyStatus(raw map[string]json.RawMessage) bool {
	_, ok := bodyStatusCode(raw)
	return ok
}

// bodyStatusCode reads statusCode as a string or number.
func bodyStatusCode(raw map[string]json.RawMessage) (string, bool) {
	v, ok := raw["statusCode"]
	if !ok || strings.TrimSpace(string(v)) == "null" {
		return "", false
	}
	var str string
	if json.Unmarshal(v, &str) == nil {
		return strings.TrimSpace(str), true
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String(), true
	}
	return "", false
}

func bodyMessage(raw map[string]json.RawMessage) string {
	for _, key := range []string{"message", "msg"} {
		var msg string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &msg) == nil && msg != "" {
			return msg
		}
	}
	return ""
}
