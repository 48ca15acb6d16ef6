package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// Config configures the feature service client.
type Config struct {
	// Host is the portal base URL.
	Host string

	// Username and Password authenticate the service account.
	Username string
	Password string

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// TokenExpiry requested for issued tokens (default: 60m).
	TokenExpiry time.Duration

	// MaxRetries bounds transient-error retries per request (default: 3).
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff (default: 100ms).
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps a single backoff sleep (default: 5s).
	RetryMaxDelay time.Duration

	// RateLimit is the write budget in requests per second (default: 10).
	RateLimit float64

	// RateBurst is the limiter burst size (default: 5).
	RateBurst int

	// HTTPClient allows injecting a client for tests.
	HTTPClient *http.Client
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.TokenExpiry == 0 {
		c.TokenExpiry = 60 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// serviceError is the JSON error envelope the service returns, usually
// with HTTP 200.
type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the minimal response wrapper used for error detection.
type envelope struct {
	Error *serviceError `json:"error"`
}

// Client executes authenticated requests against the feature service.
// Retry policy: network-level failures and 5xx responses retry with
// bounded exponential backoff; a token-expiry signal triggers exactly one
// re-authentication and one retry of the failed request; service
// validation errors are returned immediately, never retried.
type Client struct {
	cfg     Config
	session *Session
	limiter *rate.Limiter
}

// NewClient creates a client and its session. The session is not yet
// authenticated; call Connect.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		session: NewSession(cfg.Host, cfg.Username, cfg.Password, cfg.HTTPClient, cfg.TokenExpiry),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// Session exposes the underlying session (state inspection, Invalidate).
func (c *Client) Session() *Session { return c.session }

// Connect authenticates the session.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Authenticate(ctx)
}

// Close drops the session token. Safe on every exit path.
func (c *Client) Close() {
	c.session.Invalidate()
}

// PostForm executes an authenticated form POST against a service
// endpoint and decodes the JSON response into target.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, target any) error {
	body, err := c.execute(ctx, endpoint, form)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &errors.RemoteValidationError{Code: 0, Message: "undecodable response: " + err.Error()}
	}
	return nil
}

// execute runs one request with the full retry policy and returns the
// raw response body.
func (c *Client) execute(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	body, err := c.executeWithRetries(ctx, endpoint, form)
	if !errors.IsAuthExpired(err) {
		return body, err
	}

	// Single re-authentication, explicit state transition.
	c.session.MarkExpired()
	if refreshErr := c.session.Refresh(ctx); refreshErr != nil {
		return nil, refreshErr
	}

	body, err = c.executeWithRetries(ctx, endpoint, form)
	if errors.IsAuthExpired(err) {
		// A second expiry straight after a fresh token means the
		// service will not honor our credentials. Abort the run.
		c.session.state = StateFailed
		return nil, &errors.AuthError{
			Host:    c.cfg.Host,
			Message: "token expired again immediately after re-authentication",
		}
	}
	return body, err
}

// executeWithRetries retries transient failures with exponential backoff.
func (c *Client) executeWithRetries(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			if delay > c.cfg.RetryMaxDelay {
				delay = c.cfg.RetryMaxDelay
			}
			logging.Ctx(ctx).Debug().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Str("endpoint", endpoint).
				Msg("Retrying request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.doOnce(ctx, endpoint, form)
		if err == nil {
			return body, nil
		}
		if !errors.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	if te, ok := lastErr.(*errors.TransientError); ok {
		te.Attempts = c.cfg.MaxRetries + 1
		return nil, te
	}
	return nil, lastErr
}

// doOnce performs a single authenticated request and classifies the
// response.
func (c *Client) doOnce(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// Copy the form so the token never leaks into the caller's values.
	withToken := url.Values{}
	for k, v := range form {
		withToken[k] = v
	}
	if c.session.Token() != "" {
		withToken.Set("token", c.session.Token())
	}
	withToken.Set("f", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(withToken.Encode()))
	if err != nil {
		return nil, errors.WrapConnection("feature-service", c.cfg.Host, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errors.TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransientError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &errors.TransientError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errors.RemoteValidationError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	// The service reports most failures inside a 200 response.
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return nil, classifyServiceError(env.Error)
	}

	return body, nil
}

// classifyServiceError maps the service error envelope onto the
// pipeline's error taxonomy. Code 498 is the expired/invalid token
// signal; 499 requires a token where none was sent.
func classifyServiceError(se *serviceError) error {
	switch {
	case se.Code == 498 || se.Code == 499:
		return &errors.AuthError{Expired: true, Message: se.Message}
	case se.Code == 401 || se.Code == 403:
		return &errors.AuthError{Message: se.Message}
	case se.Code >= 500:
		return &errors.TransientError{StatusCode: se.Code, Err: errors.New(se.Message)}
	default:
		return &errors.RemoteValidationError{Code: se.Code, Message: se.Message}
	}
}
