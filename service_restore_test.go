package utsavAuth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sanghutsav/utsavAuth/session"
)

func TestRestoreSessionAccepted(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()
	env.login(t)

	if !env.svc.RestoreSession(ctx) {
		t.Fatal("expected restore to succeed")
	}
	if got := env.fb.authorization(); got != "Bearer "+testToken {
		t.Fatalf("expected bearer on validation request, got %q", got)
	}

	var posted session.Record
	if err := json.Unmarshal(env.fb.body(), &posted); err != nil {
		t.Fatalf("decode posted record: %v", err)
	}
	if posted.Token != testToken || posted.Username != "9876543210" {
		t.Fatalf("expected the stored record to be posted, got %+v", posted)
	}
	if !env.svc.IsAuthenticated(ctx) {
		t.Fatal("session must survive a successful restore")
	}
}

func TestRestoreSessionWithoutTokenSkipsBackend(t *testing.T) {
	env := newTestService(t, nil)

	if env.svc.RestoreSession(context.Background()) {
		t.Fatal("expected false without a session")
	}
	if env.fb.calls.Load() != 0 {
		t.Fatalf("expected no backend calls, got %d", env.fb.calls.Load())
	}
}

func TestRestoreSessionRejectedClearsSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		env := newTestService(t, nil)
		ctx := context.Background()
		env.login(t)

		env.fb.set(func(fb *fakeBackend) {
			fb.regInfo = respondJSON(status, map[string]any{"message": "token expired"})
		})

		if env.svc.RestoreSession(ctx) {
			t.Fatalf("status %d: expected restore to fail", status)
		}
		if env.svc.IsAuthenticated(ctx) || env.svc.IsAuthenticatedCached() {
			t.Fatalf("status %d: expected session cleared from both tiers", status)
		}
		if len(env.svc.ResourcePermissions(ctx)) != 0 {
			t.Fatalf("status %d: expected permissions cleared", status)
		}
	}
}

func TestRestoreSessionTransportFailure(t *testing.T) {
	t.Run("clears by default", func(t *testing.T) {
		env := newTestService(t, nil)
		env.login(t)
		env.fb.srv.Close()

		if env.svc.RestoreSession(context.Background()) {
			t.Fatal("expected false when unreachable")
		}
		if env.svc.IsAuthenticated(context.Background()) {
			t.Fatal("expected session cleared")
		}
		if got := env.svc.MetricsSnapshot().Counters[MetricRestoreTransportError]; got != 1 {
			t.Fatalf("expected transport metric 1, got %d", got)
		}
	})

	t.Run("kept when configured", func(t *testing.T) {
		env := newTestService(t, func(cfg *Config) { cfg.Session.KeepSessionOnTransportError = true })
		env.login(t)
		env.fb.srv.Close()

		if env.svc.RestoreSession(context.Background()) {
			t.Fatal("expected false when unreachable")
		}
		if !env.svc.IsAuthenticated(context.Background()) {
			t.Fatal("expected session kept")
		}
	})
}

func TestRestoreSessionExpiredTokenClearsWithoutRequest(t *testing.T) {
	env := newTestService(t, func(cfg *Config) { cfg.Session.RejectExpiredTokens = true })
	seedToken(t, env, signedToken(t, time.Now().Add(-time.Hour)))

	if env.svc.RestoreSession(context.Background()) {
		t.Fatal("expected false for expired token")
	}
	if env.fb.calls.Load() != 0 {
		t.Fatal("expected no backend call for expired token")
	}
	if env.mr.Exists("utsav:default:" + session.KeyUserDetails) {
		t.Fatal("expected expired session cleared")
	}
}

func TestPersonalInfo(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()

	if _, err := env.svc.PersonalInfo(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	env.login(t)
	info, err := env.svc.PersonalInfo(ctx)
	if err != nil {
		t.Fatalf("PersonalInfo failed: %v", err)
	}
	if info.UserID != "u-1" || info.FirstName != "Asha" {
		t.Fatalf("unexpected info %+v", info)
	}

	env.fb.set(func(fb *fakeBackend) { fb.regInfo = respondRaw(http.StatusUnauthorized, "") })
	if _, err := env.svc.PersonalInfo(ctx); !errors.Is(err, ErrPersonalInfoUnavailable) {
		t.Fatalf("expected ErrPersonalInfoUnavailable, got %v", err)
	}
	if !env.svc.IsAuthenticated(ctx) {
		t.Fatal("a failed profile fetch must not clear the session")
	}
}

func TestSavePersonalInfo(t *testing.T) {
	env := newTestService(t, nil)
	ctx := context.Background()
	env.login(t)

	err := env.svc.SavePersonalInfo(ctx, PersonalInfo{UserID: "u-1", City: "Pune", TentNumber: "T-14"})
	if err != nil {
		t.Fatalf("SavePersonalInfo failed: %v", err)
	}
	var sent PersonalInfo
	if err := json.Unmarshal(env.fb.body(), &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.City != "Pune" || sent.TentNumber != "T-14" {
		t.Fatalf("unexpected payload %+v", sent)
	}

	env.fb.set(func(fb *fakeBackend) { fb.update = respondJSON(http.StatusBadRequest, map[string]any{"message": "bad pin code"}) })
	if err := env.svc.SavePersonalInfo(ctx, PersonalInfo{}); !errors.Is(err, ErrPersonalInfoUnavailable) {
		t.Fatalf("expected ErrPersonalInfoUnavailable, got %v", err)
	}
}

func TestRegisterUserMultipart(t *testing.T) {
	env := newTestService(t, nil)

	var gotUsers, gotFile, gotName string
	env.fb.set(func(fb *fakeBackend) {
		fb.create = func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			gotUsers = r.FormValue("users")
			f, hdr, err := r.FormFile("idProofFiles[0]")
			if err == nil {
				data, _ := io.ReadAll(f)
				_ = f.Close()
				gotFile = string(data)
				gotName = hdr.Filename
			}
			w.WriteHeader(http.StatusOK)
		}
	})

	users, err := UsersField([]PersonalInfo{{FirstName: "Asha", MobileNumber: "9876543210"}})
	if err != nil {
		t.Fatalf("UsersField failed: %v", err)
	}
	form := RegistrationForm{Fields: []FormField{users}}
	form.Attach("idProofFiles[0]", "aadhaar.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))

	if err := env.svc.RegisterUser(context.Background(), form); err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if !strings.Contains(gotUsers, `"firstName":"Asha"`) {
		t.Fatalf("unexpected users field %q", gotUsers)
	}
	if gotFile != "%PDF-1.4" || gotName != "aadhaar.pdf" {
		t.Fatalf("unexpected file %q (%q)", gotFile, gotName)
	}
	if env.svc.IsAuthenticated(context.Background()) {
		t.Fatal("registration must not create a session")
	}
}

func TestRegisterUserFailures(t *testing.T) {
	env := newTestService(t, nil)
	form := (&RegistrationForm{}).Add("users", "[]")

	env.fb.set(func(fb *fakeBackend) {
		fb.create = respondJSON(http.StatusConflict, map[string]any{"message": "mobile already registered"})
	})
	err := env.svc.RegisterUser(context.Background(), *form)
	if !errors.Is(err, ErrRegistrationFailed) {
		t.Fatalf("expected ErrRegistrationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "mobile already registered") {
		t.Fatalf("expected backend message in error, got %v", err)
	}

	env.fb.srv.Close()
	if err := env.svc.RegisterUser(context.Background(), *form); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if got := env.svc.MetricsSnapshot().Counters[MetricRegistrationFailure]; got != 2 {
		t.Fatalf("expected 2 registration failures, got %d", got)
	}
}
