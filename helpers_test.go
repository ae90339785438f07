package utsavAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sanghutsav/utsavAuth/internal/logging"
	"github.com/sanghutsav/utsavAuth/session"
)

const testToken = "tok-abc"

// fakeBackend serves the registration API with per-endpoint handlers that tests swap.
type fakeBackend struct {
	srv *httptest.Server

	mu       sync.Mutex
	signIn   http.HandlerFunc
	create   http.HandlerFunc
	regInfo  http.HandlerFunc
	update   http.HandlerFunc
	lastAuth string
	lastBody []byte

	calls atomic.Int64
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		signIn: respondJSON(http.StatusOK, map[string]any{
			"statusCode":         "200",
			"message":            "Login successful",
			"username":           "9876543210",
			"jwtToken":           testToken,
			"roleid":             2,
			"userType":           1,
			"resourcePermission": []any{map[string]any{"resource": "dashboard", "access": "rw"}},
		}),
		create:  respondJSON(http.StatusOK, map[string]any{"statusCode": "200"}),
		regInfo: respondJSON(http.StatusOK, map[string]any{"userid": "u-1", "firstName": "Asha", "mobileNumber": "9876543210"}),
		update:  respondJSON(http.StatusOK, map[string]any{"statusCode": "200"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/signin", fb.dispatch(func() http.HandlerFunc { return fb.signIn }))
	mux.HandleFunc("/api/auth/createUser", fb.dispatch(func() http.HandlerFunc { return fb.create }))
	mux.HandleFunc("/iauth/getUserRegistrationInformation", fb.dispatch(func() http.HandlerFunc { return fb.regInfo }))
	mux.HandleFunc("/iauth/updateUserRegistrationInformation", fb.dispatch(func() http.HandlerFunc { return fb.update }))
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) dispatch(pick func() http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		fb.mu.Lock()
		fb.lastAuth = r.Header.Get("Authorization")
		fb.lastBody = body
		h := pick()
		fb.mu.Unlock()

		h(w, r)
	}
}

func (fb *fakeBackend) set(fn func(fb *fakeBackend)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn(fb)
}

func (fb *fakeBackend) authorization() string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastAuth
}

func (fb *fakeBackend) body() []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]byte(nil), fb.lastBody...)
}

func respondJSON(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondRaw(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.Timeout = 5 * time.Second
	return cfg
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
	err    error
}

func (n *recordingNavigator) Navigate(_ context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
	return n.err
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type testEnv struct {
	svc *Service
	fb  *fakeBackend
	mr  *miniredis.Miniredis
	nav *recordingNavigator
}

func newTestService(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()

	fb := newFakeBackend(t)
	mr, rdb := newTestRedis(t)
	nav := &recordingNavigator{}

	cfg := testConfig(fb.srv.URL)
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithNavigator(nav).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, fb: fb, mr: mr, nav: nav}
}

func (e *testEnv) login(t *testing.T) LoginResult {
	t.Helper()
	res, err := e.svc.Login(context.Background(), Credentials{Username: "9876543210", Password: "pw"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected login ok, got %s", res.Outcome)
	}
	return res
}

// failingStore wraps a MemoryStore and fails the Set call numbered failSetAt (1-based).
type failingStore struct {
	*session.MemoryStore

	mu        sync.Mutex
	sets      int
	failSetAt int
}

func newFailingStore(failSetAt int) *failingStore {
	return &failingStore{MemoryStore: session.NewMemoryStore(), failSetAt: failSetAt}
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.sets++
	fail := f.sets == f.failSetAt
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: disk full", session.ErrStoreUnavailable)
	}
	return f.MemoryStore.Set(ctx, key, value)
}

// newStoreTestService builds a Service over an arbitrary durable store.
func newStoreTestService(t *testing.T, durable session.Store, mutate func(cfg *Config)) *testEnv {
	t.Helper()

	fb := newFakeBackend(t)
	nav := &recordingNavigator{}
	cfg := testConfig(fb.srv.URL)
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := New().
		WithConfig(cfg).
		WithDurableStore(durable).
		WithNavigator(nav).
		WithLogger(logging.Discard()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, fb: fb, nav: nav}
}
