package utsavAuth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingSink keeps every delivered event.
type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

// heldSink blocks in Emit until release is closed, and reports each entry on entered.
type heldSink struct {
	entered chan string
	release chan struct{}
}

func newHeldSink() *heldSink {
	return &heldSink{entered: make(chan string, 16), release: make(chan struct{})}
}

func (s *heldSink) Emit(_ context.Context, event AuditEvent) {
	s.entered <- event.EventType
	<-s.release
}

type panickingSink struct{}

func (panickingSink) Emit(context.Context, AuditEvent) { panic("sink exploded") }

func newAuditEnv(t *testing.T, sink AuditSink, enabled bool) *testEnv {
	t.Helper()
	return newTestServiceWithAudit(t, sink, func(cfg *Config) {
		cfg.Audit.Enabled = enabled
		cfg.Audit.BufferSize = 32
		cfg.Audit.DropIfFull = false
	})
}

func newTestServiceWithAudit(t *testing.T, sink AuditSink, mutate func(cfg *Config)) *testEnv {
	t.Helper()
	fb := newFakeBackend(t)
	mr, rdb := newTestRedis(t)
	cfg := testConfig(fb.srv.URL)
	mutate(&cfg)

	svc, err := New().WithConfig(cfg).WithRedis(rdb).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)
	return &testEnv{svc: svc, fb: fb, mr: mr, nav: &recordingNavigator{}}
}

func awaitEvents(ch <-chan AuditEvent, n int) []AuditEvent {
	events := make([]AuditEvent, 0, n)
	deadline := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev := <-ch:
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestAuditDisabledDeliversNothing(t *testing.T) {
	sink := &recordingSink{}
	env := newAuditEnv(t, sink, false)

	env.login(t)
	_ = env.svc.Logout(context.Background())
	if err := env.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := sink.types(); len(got) != 0 {
		t.Fatalf("expected no events when disabled, got %v", got)
	}
}

func TestAuditLoginLogoutEvents(t *testing.T) {
	sink := NewChannelSink(16)
	env := newAuditEnv(t, sink, true)

	ctx := WithCorrelationID(context.Background(), "corr-42")
	if _, err := env.svc.Login(ctx, Credentials{Username: "9876543210", Password: "super-secret-password"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_ = env.svc.Logout(ctx)

	events := awaitEvents(sink.Events(), 2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	login, logout := events[0], events[1]
	if login.EventType != AuditLogin || !login.Success || login.Username != "9876543210" {
		t.Fatalf("unexpected login event %+v", login)
	}
	if login.DeviceID != "default" || login.CorrelationID != "corr-42" {
		t.Fatalf("unexpected identity fields %+v", login)
	}
	if logout.EventType != AuditLogout || logout.Username != "9876543210" {
		t.Fatalf("unexpected logout event %+v", logout)
	}

	for _, ev := range events {
		fields := []string{ev.Error}
		for k, v := range ev.Metadata {
			fields = append(fields, k, v)
		}
		for _, f := range fields {
			if strings.Contains(f, "super-secret-password") || strings.Contains(f, testToken) {
				t.Fatalf("secret leaked into audit event %+v", ev)
			}
		}
	}
}

func TestAuditRestoreRejectionEmitsClear(t *testing.T) {
	sink := NewChannelSink(16)
	env := newAuditEnv(t, sink, true)
	env.login(t)
	env.fb.set(func(fb *fakeBackend) { fb.regInfo = respondRaw(401, "") })

	_ = env.svc.RestoreSession(context.Background())

	events := awaitEvents(sink.Events(), 3)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].EventType != AuditRestore || events[1].Success {
		t.Fatalf("unexpected restore event %+v", events[1])
	}
	if events[2].EventType != AuditSessionCleared || events[2].Metadata["reason"] != "rejected" {
		t.Fatalf("unexpected clear event %+v", events[2])
	}
}

func TestAuditDropsCountedPerEventType(t *testing.T) {
	sink := newHeldSink()
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.release)
		_ = d.Shutdown(context.Background())
	}()

	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})
	<-sink.entered // the sink holds the first event; the buffer is free again
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})

	start := time.Now()
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	d.Emit(context.Background(), AuditEvent{EventType: AuditSessionCorrupt})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("DropIfFull must not block")
	}

	byType := d.DroppedByType()
	if byType[AuditLogout] != 2 || byType[AuditSessionCorrupt] != 1 || byType[AuditLogin] != 0 {
		t.Fatalf("unexpected per-type drops %v", byType)
	}
	if d.Dropped() != 3 {
		t.Fatalf("expected 3 drops in total, got %d", d.Dropped())
	}
}

func TestAuditBlockingEmitGivesUpWithContext(t *testing.T) {
	sink := newHeldSink()
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.release)
		_ = d.Shutdown(context.Background())
	}()

	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})
	<-sink.entered
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d.Emit(ctx, AuditEvent{EventType: AuditRestore})

	if got := d.DroppedByType()[AuditRestore]; got != 1 {
		t.Fatalf("expected the abandoned event counted, got %d", got)
	}
}

func TestAuditShutdownDrainsQueue(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{AuditLogin, AuditRestore, AuditLogout} {
		d.Emit(context.Background(), AuditEvent{EventType: typ})
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := strings.Join(sink.types(), ","); got != "login,session_restore,logout" {
		t.Fatalf("expected queued events delivered in order, got %q", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", d.Dropped())
	}
}

func TestAuditShutdownDeadlineAbandonsStuckSink(t *testing.T) {
	sink := newHeldSink()
	defer close(sink.release)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})
	<-sink.entered
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	d.Emit(context.Background(), AuditEvent{EventType: AuditSessionCleared})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := d.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("shutdown must return at the deadline")
	}

	byType := d.DroppedByType()
	if byType[AuditLogout] != 1 || byType[AuditSessionCleared] != 1 {
		t.Fatalf("expected queued events counted as dropped, got %v", byType)
	}
	if again := d.Shutdown(context.Background()); !errors.Is(again, context.DeadlineExceeded) {
		t.Fatalf("expected repeated shutdown to report the first result, got %v", again)
	}
}

func TestAuditShutdownReleasesBlockedEmit(t *testing.T) {
	sink := newHeldSink()
	defer close(sink.release)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})
	<-sink.entered
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), AuditEvent{EventType: AuditRegistration})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("expected emit to wait while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = d.Shutdown(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown left an emitter blocked")
	}
	if got := d.DroppedByType()[AuditRegistration]; got != 1 {
		t.Fatalf("expected released event counted, got %d", got)
	}
}

func TestAuditPanickingSinkCountedAndSurvived(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, panickingSink{})

	d.Emit(context.Background(), AuditEvent{EventType: AuditLogin})
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	byType := d.DroppedByType()
	if byType[AuditLogin] != 1 || byType[AuditLogout] != 1 {
		t.Fatalf("expected both events counted, got %v", byType)
	}
}

func TestAuditEmitAfterShutdownCounted(t *testing.T) {
	sink := &recordingSink{}
	env := newTestServiceWithAudit(t, sink, func(cfg *Config) { cfg.Audit.Enabled = true })

	if err := env.svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	env.svc.emitAudit(context.Background(), AuditLogout, "9876543210", true, nil, nil)

	if got := env.svc.AuditDroppedByType()[AuditLogout]; got != 1 {
		t.Fatalf("expected late event counted, got %d", got)
	}
	if env.svc.AuditDropped() != 1 {
		t.Fatalf("expected AuditDropped 1, got %d", env.svc.AuditDropped())
	}
	if len(sink.types()) != 0 {
		t.Fatal("no event may reach the sink after shutdown")
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	for _, device := range []string{"kiosk-3", "kiosk-4"} {
		sink.Emit(context.Background(), AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: AuditLogin,
			Username:  "9876543210",
			DeviceID:  device,
			Success:   true,
		})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"event_type":"login"`) || !strings.Contains(lines[1], `"device_id":"kiosk-4"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
