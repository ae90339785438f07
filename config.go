package utsavAuth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the complete Service configuration. Obtain one from [DefaultConfig] or
// [LoadConfig], adjust it, and hand it to [Builder.WithConfig].
type Config struct {
	Backend    BackendConfig    `yaml:"backend" envPrefix:"BACKEND_"`
	Session    SessionConfig    `yaml:"session" envPrefix:"SESSION_"`
	Navigation NavigationConfig `yaml:"navigation" envPrefix:"NAVIGATION_"`
	Authorizer AuthorizerConfig `yaml:"authorizer" envPrefix:"AUTHORIZER_"`
	Audit      AuditConfig      `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig locates the registration API.
type BackendConfig struct {
	BaseURL                    string               `yaml:"base_url" env:"BASE_URL"`
	Timeout                    time.Duration        `yaml:"timeout" env:"TIMEOUT"`
	SignInPath                 string               `yaml:"sign_in_path" env:"SIGN_IN_PATH"`
	CreateUserPath             string               `yaml:"create_user_path" env:"CREATE_USER_PATH"`
	RegistrationInfoPath       string               `yaml:"registration_info_path" env:"REGISTRATION_INFO_PATH"`
	UpdateRegistrationInfoPath string               `yaml:"update_registration_info_path" env:"UPDATE_REGISTRATION_INFO_PATH"`
	CircuitBreaker             CircuitBreakerConfig `yaml:"circuit_breaker" envPrefix:"BREAKER_"`
}

// CircuitBreakerConfig controls the backend circuit breaker.
type CircuitBreakerConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	MaxRequests  uint32        `yaml:"max_requests" env:"MAX_REQUESTS"`
	Interval     time.Duration `yaml:"interval" env:"INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	FailureRatio float64       `yaml:"failure_ratio" env:"FAILURE_RATIO"`
	MinRequests  uint32        `yaml:"min_requests" env:"MIN_REQUESTS"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls durable storage and how stored tokens are judged.
type SessionConfig struct {
	// RedisPrefix and DeviceID namespace keys in a shared Redis.
	RedisPrefix string `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	DeviceID    string `yaml:"device_id" env:"DEVICE_ID"`
	// TTL expires durable entries. Zero keeps them until logout.
	TTL time.Duration `yaml:"ttl" env:"TTL"`

	// RejectExpiredTokens makes IsAuthenticated false for JWTs whose exp has passed.
	RejectExpiredTokens bool          `yaml:"reject_expired_tokens" env:"REJECT_EXPIRED_TOKENS"`
	TokenLeeway         time.Duration `yaml:"token_leeway" env:"TOKEN_LEEWAY"`
	// With RejectExpiredTokens, a set TokenVerifyKey also rejects JWTs whose signature
	// does not verify. It is the HS256 secret or an Ed25519 public key in PEM, per
	// TokenSigningMethod ("hs256" or "ed25519").
	TokenVerifyKey     string `yaml:"token_verify_key" env:"TOKEN_VERIFY_KEY"`
	TokenSigningMethod string `yaml:"token_signing_method" env:"TOKEN_SIGNING_METHOD"`

	// KeepSessionOnTransportError stops RestoreSession from clearing the session when
	// the backend could not be reached at all.
	KeepSessionOnTransportError bool `yaml:"keep_session_on_transport_error" env:"KEEP_ON_TRANSPORT_ERROR"`
}

// NavigationConfig names the routes the Service navigates to.
type NavigationConfig struct {
	LoginRoute string `yaml:"login_route" env:"LOGIN_ROUTE"`
	HomeRoute  string `yaml:"home_route" env:"HOME_ROUTE"`
}

// AuthorizerConfig controls the bearer-attaching HTTP transport.
type AuthorizerConfig struct {
	RequestIDHeader  string `yaml:"request_id_header" env:"REQUEST_ID_HEADER"`
	PreserveExisting bool   `yaml:"preserve_existing" env:"PRESERVE_EXISTING"`
}

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`
	// DrainTimeout bounds how long Close waits for queued events to reach the sink.
	// Zero abandons whatever is still queued.
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"DRAIN_TIMEOUT"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"LATENCY_HISTOGRAMS"`
}

// LogConfig controls the default logger built when none is supplied.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:                    "https://registration.lehriratnasangh.live",
			Timeout:                    30 * time.Second,
			SignInPath:                 "/api/auth/signin",
			CreateUserPath:             "/api/auth/createUser",
			RegistrationInfoPath:       "/iauth/getUserRegistrationInformation",
			UpdateRegistrationInfoPath: "/iauth/updateUserRegistrationInformation",
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      false,
				MaxRequests:  1,
				Interval:     60 * time.Second,
				Timeout:      30 * time.Second,
				FailureRatio: 0.5,
				MinRequests:  5,
			},
		},
		Session: SessionConfig{
			RedisPrefix:         "utsav",
			DeviceID:            "default",
			TTL:                 0,
			RejectExpiredTokens: false,
			TokenLeeway:         30 * time.Second,
		},
		Navigation: NavigationConfig{
			LoginRoute: "login",
			HomeRoute:  "dashboard",
		},
		Authorizer: AuthorizerConfig{
			RequestIDHeader:  "X-Request-ID",
			PreserveExisting: false,
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   256,
			DropIfFull:   true,
			DrainTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Backend
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("Backend BaseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Backend BaseURL must be http or https")
	}
	if u.Host == "" {
		return errors.New("Backend BaseURL must include a host")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("Backend Timeout must be > 0")
	}
	for name, p := range map[string]string{
		"SignInPath":                 c.Backend.SignInPath,
		"CreateUserPath":             c.Backend.CreateUserPath,
		"RegistrationInfoPath":       c.Backend.RegistrationInfoPath,
		"UpdateRegistrationInfoPath": c.Backend.UpdateRegistrationInfoPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Backend %s must start with /", name)
		}
	}

	cb := c.Backend.CircuitBreaker
	if cb.Enabled {
		if cb.FailureRatio <= 0 || cb.FailureRatio > 1 {
			return errors.New("CircuitBreaker FailureRatio must be in (0, 1]")
		}
		if cb.Timeout <= 0 {
			return errors.New("CircuitBreaker Timeout must be > 0")
		}
		if cb.Interval < 0 {
			return errors.New("CircuitBreaker Interval must be >= 0")
		}
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix+c.Session.DeviceID, " *?[]") {
		return errors.New("Session RedisPrefix and DeviceID must not contain spaces or glob characters")
	}
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}
	if c.Session.TokenLeeway < 0 || c.Session.TokenLeeway > 10*time.Minute {
		return errors.New("Session TokenLeeway must be in [0, 10m]")
	}
	if c.Session.TokenVerifyKey != "" {
		switch strings.ToLower(c.Session.TokenSigningMethod) {
		case "hs256", "ed25519":
		default:
			return fmt.Errorf("Session TokenSigningMethod %q must be hs256 or ed25519", c.Session.TokenSigningMethod)
		}
	}

	// Navigation
	if strings.Trim(c.Navigation.LoginRoute, "/ ") == "" {
		return errors.New("Navigation LoginRoute must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.DrainTimeout < 0 {
		return errors.New("Audit DrainTimeout must be >= 0")
	}

	// Log
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("Log Format %q must be json or text", c.Log.Format)
	}

	return nil
}
