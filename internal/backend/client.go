package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const maxBodyBytes = 4 << 20

// Paths are the endpoint paths, joined onto BaseURL.
type Paths struct {
	SignIn                 string
	CreateUser             string
	RegistrationInfo       string
	UpdateRegistrationInfo string
}

// DefaultPaths returns the paths the production API serves.
func DefaultPaths() Paths {
	return Paths{
		SignIn:                 "/api/auth/signin",
		CreateUser:             "/api/auth/createUser",
		RegistrationInfo:       "/iauth/getUserRegistrationInformation",
		UpdateRegistrationInfo: "/iauth/updateUserRegistrationInformation",
	}
}

// BreakerConfig configures the optional circuit breaker.
type BreakerConfig struct {
	Enabled bool
	Name    string

	// MaxRequests is the number of requests allowed in the half-open state.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// FailureRatio trips the breaker once reached.
	FailureRatio float64
	// MinRequests is the sample size required before FailureRatio is evaluated.
	MinRequests uint32
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Paths   Paths
	Breaker BreakerConfig
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return io.ErrUnexpectedEOF
	}
	return json.Unmarshal(r.Body, v)
}

// Field is a plain multipart form value.
type Field struct {
	Name  string
	Value string
}

// File is a multipart file part.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// Form is a multipart request body.
type Form struct {
	Fields []Field
	Files  []File
}

// Client talks to the registration API. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	base    *url.URL
	paths   Paths
	breaker *gobreaker.CircuitBreaker[*Response]
	logger  *slog.Logger
}

// errServerStatus marks 5xx responses as breaker failures without discarding them.
var errServerStatus = errors.New("server status")

// New builds a Client. A nil httpClient gets a fresh client with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base url: unsupported scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("backend base url: missing host")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	paths := cfg.Paths
	defaults := DefaultPaths()
	if paths.SignIn == "" {
		paths.SignIn = defaults.SignIn
	}
	if paths.CreateUser == "" {
		paths.CreateUser = defaults.CreateUser
	}
	if paths.RegistrationInfo == "" {
		paths.RegistrationInfo = defaults.RegistrationInfo
	}
	if paths.UpdateRegistrationInfo == "" {
		paths.UpdateRegistrationInfo = defaults.UpdateRegistrationInfo
	}

	c := &Client{
		http:   httpClient,
		base:   base,
		paths:  paths,
		logger: logger,
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, logger)
	}
	return c, nil
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[*Response] {
	name := cfg.Name
	if name == "" {
		name = "utsav-backend"
	}
	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// BreakerState returns the breaker state, or StateClosed when no breaker is configured.
func (c *Client) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// SignIn posts credentials and returns the response whatever its status. The error is
// non-nil only when no response was obtained.
func (c *Client) SignIn(ctx context.Context, username, password string) (*Response, error) {
	payload := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}
	return c.postJSON(ctx, c.paths.SignIn, payload)
}

// CreateUser posts a multipart registration. Non-2xx responses return *StatusError.
func (c *Client) CreateUser(ctx context.Context, form Form) error {
	body, contentType, err := encodeForm(form)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, c.paths.CreateUser, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return ParseStatusError(resp)
	}
	return nil
}

// RegistrationInfo posts payload (normally the session record) and returns the 2xx
// response. Non-2xx responses return *StatusError.
func (c *Client) RegistrationInfo(ctx context.Context, payload any) (*Response, error) {
	resp, err := c.postJSON(ctx, c.paths.RegistrationInfo, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, ParseStatusError(resp)
	}
	return resp, nil
}

// UpdateRegistrationInfo posts updated personal information.
func (c *Client) UpdateRegistrationInfo(ctx context.Context, payload any) error {
	resp, err := c.postJSON(ctx, c.paths.UpdateRegistrationInfo, payload)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return ParseStatusError(resp)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	if c.breaker == nil {
		resp, err := c.roundTrip(req)
		if errors.Is(err, errServerStatus) {
			return resp, nil
		}
		return resp, err
	}

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.roundTrip(req)
	})
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return nil, err
	}
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header.Clone(),
		Body:   body,
	}
	if resp.Status >= 500 {
		return resp, errServerStatus
	}
	return resp, nil
}

func encodeForm(form Form) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range form.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("encode form field %s: %w", f.Name, err)
		}
	}
	for _, f := range form.Files {
		if f.Content == nil {
			return nil, "", fmt.Errorf("encode form file %s: nil content", f.Field)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("encode form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("encode form file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
