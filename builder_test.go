package utsavAuth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sanghutsav/utsavAuth/internal/logging"
	"github.com/sanghutsav/utsavAuth/session"
)

func TestBuildRequiresDurableStore(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without durable store")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.BaseURL = "mailto:someone"

	_, err := New().WithConfig(cfg).WithDurableStore(session.NewMemoryStore()).Build()
	if err == nil {
		t.Fatal("expected invalid config error")
	}
}

func TestBuildRejectsUnusableVerifyKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.TokenSigningMethod = "ed25519"
	cfg.Session.TokenVerifyKey = "not a pem key"

	_, err := New().WithConfig(cfg).WithDurableStore(session.NewMemoryStore()).WithLogger(logging.Discard()).Build()
	if err == nil {
		t.Fatal("expected Build to reject an unparseable ed25519 key")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithDurableStore(session.NewMemoryStore()).WithLogger(logging.Discard())
	svc, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	defer svc.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}
}

func TestServiceWithFileStoreDurableTier(t *testing.T) {
	fb := newFakeBackend(t)
	path := filepath.Join(t.TempDir(), "session.yaml")

	build := func() *Service {
		svc, err := New().
			WithConfig(testConfig(fb.srv.URL)).
			WithDurableStore(session.NewFileStore(path)).
			WithLogger(logging.Discard()).
			Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		t.Cleanup(svc.Close)
		return svc
	}

	first := build()
	if _, err := first.Login(context.Background(), Credentials{Username: "9876543210"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	second := build()
	if second.IsAuthenticatedCached() {
		t.Fatal("fresh service mirror should start empty")
	}
	if !second.IsAuthenticated(context.Background()) {
		t.Fatal("expected session to survive a restart through the file store")
	}
}

func TestServiceRecoversFromCorruptPreferencesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("- a\n- list\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env := newStoreTestService(t, session.NewFileStore(path, session.WithFileLogger(logging.Discard())), nil)
	ctx := context.Background()

	if env.svc.IsAuthenticated(ctx) {
		t.Fatal("a corrupt file must read as no session")
	}
	if res := env.svc.Logout(ctx); !res.Cleared {
		t.Fatalf("expected logout to clear over a corrupt file, got %v", res.Err)
	}
	env.login(t)
	if !env.svc.IsAuthenticated(ctx) {
		t.Fatal("expected login to replace the corrupt file")
	}
}

func TestServiceWithSealedStore(t *testing.T) {
	env := newTestService(t, nil)
	key, err := session.KeyFromPassphrase("kiosk passphrase", []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}
	inner := session.NewMemoryStore()
	sealed, err := session.NewSealedStore(inner, key)
	if err != nil {
		t.Fatalf("sealed store: %v", err)
	}

	svc, err := New().
		WithConfig(testConfig(env.fb.srv.URL)).
		WithDurableStore(sealed).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	if _, err := svc.Login(context.Background(), Credentials{Username: "9876543210"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	raw, ok := inner.Peek(session.KeyUserDetails)
	if !ok {
		t.Fatal("expected sealed value in inner store")
	}
	if raw == "" || strings.Contains(raw, testToken) {
		t.Fatal("expected token sealed at rest")
	}
	if rec := svc.CurrentSession(context.Background()); rec == nil || rec.Token != testToken {
		t.Fatalf("expected unsealed session, got %+v", rec)
	}
}

func TestServiceNotReady(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	if svc.IsAuthenticated(ctx) || svc.RestoreSession(ctx) {
		t.Fatal("nil service must report unauthenticated")
	}
	if _, err := svc.Login(ctx, Credentials{Username: "x"}); !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady, got %v", err)
	}
	if res := svc.Logout(ctx); !errors.Is(res.Err, ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady, got %v", res.Err)
	}

	env := newTestService(t, nil)
	env.svc.Close()
	if err := env.svc.RegisterUser(ctx, RegistrationForm{}); !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady after close, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestService(t, nil)

	h := env.svc.Health(context.Background())
	if !h.DurableAvailable || h.BreakerState != "closed" {
		t.Fatalf("unexpected health %+v", h)
	}

	env.mr.SetError("LOADING")
	defer env.mr.SetError("")
	if env.svc.Health(context.Background()).DurableAvailable {
		t.Fatal("expected durable tier unavailable")
	}
}

func TestRouteAccessors(t *testing.T) {
	env := newTestService(t, func(cfg *Config) { cfg.Navigation.HomeRoute = "events" })
	if env.svc.LoginRoute() != "login" || env.svc.HomeRoute() != "events" {
		t.Fatalf("unexpected routes %q %q", env.svc.LoginRoute(), env.svc.HomeRoute())
	}
	if env.svc.Config().Navigation.HomeRoute != "events" {
		t.Fatal("expected config copy")
	}
}
