package utsavAuth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sanghutsav/utsavAuth/internal/backend"
	"github.com/sanghutsav/utsavAuth/internal/logging"
	"github.com/sanghutsav/utsavAuth/jwt"
	"github.com/sanghutsav/utsavAuth/session"
	"github.com/sanghutsav/utsavAuth/transport"
)

// Builder assembles a [Service]. A Builder is single-use.
type Builder struct {
	config Config

	redis   redis.UniversalClient
	durable session.Store
	mirror  session.Store

	baseTransport http.RoundTripper
	navigator     Navigator
	auditSink     AuditSink
	logger        *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis uses Redis as the durable tier, namespaced by Session.RedisPrefix and
// Session.DeviceID. Ignored when WithDurableStore is also given.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDurableStore sets the durable tier directly.
func (b *Builder) WithDurableStore(store session.Store) *Builder {
	b.durable = store
	return b
}

// WithMirrorStore replaces the default in-memory mirror. Synchronous accessors only
// work when the store also implements session.SyncReader.
func (b *Builder) WithMirrorStore(store session.Store) *Builder {
	b.mirror = store
	return b
}

// WithBaseTransport sets the RoundTripper beneath the bearer-attaching Authorizer.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Service. Build performs no I/O.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	durable := b.durable
	if durable == nil {
		if b.redis == nil {
			return nil, errors.New("durable store or redis client required")
		}
		durable = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.DeviceID, cfg.Session.TTL)
	}

	mirror := b.mirror
	if mirror == nil {
		mirror = session.NewMemoryStore()
	}

	logger := b.logger
	if logger == nil {
		logger = logging.NewWithWriter("utsav-auth", cfg.Log.Level, cfg.Log.Format, os.Stderr)
	}

	inspector, err := jwt.NewInspector(jwt.Config{
		Leeway:        cfg.Session.TokenLeeway,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.Session.TokenSigningMethod)),
		VerifyKey:     []byte(cfg.Session.TokenVerifyKey),
	})
	if err != nil {
		return nil, err
	}

	navigator := b.navigator
	if navigator == nil {
		navigator = noopNavigator{}
	}

	svc := &Service{
		config:    cfg,
		durable:   durable,
		mirror:    mirror,
		navigator: navigator,
		inspector: inspector,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
	}

	authorizer := transport.NewAuthorizer(svc, b.baseTransport)
	authorizer.PreserveExisting = cfg.Authorizer.PreserveExisting
	authorizer.RequestIDHeader = cfg.Authorizer.RequestIDHeader
	svc.httpClient = &http.Client{Transport: authorizer, Timeout: cfg.Backend.Timeout}

	client, err := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Paths: backend.Paths{
			SignIn:                 cfg.Backend.SignInPath,
			CreateUser:             cfg.Backend.CreateUserPath,
			RegistrationInfo:       cfg.Backend.RegistrationInfoPath,
			UpdateRegistrationInfo: cfg.Backend.UpdateRegistrationInfoPath,
		},
		Breaker: backend.BreakerConfig{
			Enabled:      cfg.Backend.CircuitBreaker.Enabled,
			Name:         "utsav-backend",
			MaxRequests:  cfg.Backend.CircuitBreaker.MaxRequests,
			Interval:     cfg.Backend.CircuitBreaker.Interval,
			Timeout:      cfg.Backend.CircuitBreaker.Timeout,
			FailureRatio: cfg.Backend.CircuitBreaker.FailureRatio,
			MinRequests:  cfg.Backend.CircuitBreaker.MinRequests,
		},
	}, svc.httpClient, logger)
	if err != nil {
		_ = svc.audit.Shutdown(context.Background())
		return nil, err
	}
	svc.backend = client

	b.built = true

	return svc, nil
}
