// Package transport provides the authenticated HTTP client for the
// remote feature service: an expiring token session with an explicit
// re-authentication state machine, bounded retries with exponential
// backoff, and client-side rate limiting of writes.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
	"github.com/bcgov/bcparks-asset-sync/pkg/logging"
)

// SessionState tracks the authentication lifecycle. Re-authentication is
// an explicit state transition, not exception-driven control flow.
type SessionState int

// Session states.
const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateExpired
	StateReauthenticating
	StateFailed
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateReauthenticating:
		return "reauthenticating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AccountInfo describes the authenticated service account.
type AccountInfo struct {
	Username      string `json:"username"`
	Role          string `json:"role"`
	UserLicenseID string `json:"userLicenseTypeId"`
}

// Session is an expiring token session against the feature service
// portal. It is a scoped resource: acquired at run start and dropped on
// every exit path. The publisher serializes all use, so Session does not
// need to be goroutine-safe.
type Session struct {
	host     string
	username string
	password string

	http        *http.Client
	tokenExpiry time.Duration

	state   SessionState
	token   string
	expires time.Time
	account *AccountInfo
}

// tokenResponse is the generateToken response envelope.
type tokenResponse struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires"` // epoch milliseconds
	Error   *serviceError
}

// NewSession creates an unauthenticated session for the portal host.
func NewSession(host, username, password string, httpClient *http.Client, tokenExpiry time.Duration) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if tokenExpiry <= 0 {
		tokenExpiry = 60 * time.Minute
	}
	return &Session{
		host:        strings.TrimRight(host, "/"),
		username:    username,
		password:    password,
		http:        httpClient,
		tokenExpiry: tokenExpiry,
		state:       StateUnauthenticated,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return s.state }

// Token returns the current token. Empty until authenticated.
func (s *Session) Token() string { return s.token }

// Account returns the authenticated account info, nil before
// authentication.
func (s *Session) Account() *AccountInfo { return s.account }

// Authenticate acquires a token. A credential rejection is permanent and
// moves the session to FAILED.
func (s *Session) Authenticate(ctx context.Context) error {
	if err := s.generateToken(ctx); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StateAuthenticated

	// Best effort: the account details only feed logging.
	if info, err := s.fetchAccountInfo(ctx); err == nil {
		s.account = info
		logging.Ctx(ctx).Info().
			Str("username", info.Username).
			Str("role", info.Role).
			Str("license", info.UserLicenseID).
			Msg("Connected to feature service")
	}
	return nil
}

// MarkExpired records a mid-run token expiry signal.
func (s *Session) MarkExpired() {
	s.state = StateExpired
}

// Refresh performs the single permitted re-authentication after an
// expiry: EXPIRED -> REAUTHENTICATING -> AUTHENTICATED or FAILED.
func (s *Session) Refresh(ctx context.Context) error {
	if s.state != StateExpired {
		return &errors.AuthError{
			Host:    s.host,
			Message: fmt.Sprintf("refresh requested in state %s", s.state),
		}
	}

	s.state = StateReauthenticating
	logging.Ctx(ctx).Warn().Str("host", s.host).Msg("Session expired, re-authenticating")

	if err := s.generateToken(ctx); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StateAuthenticated
	return nil
}

// Invalidate drops the token. Safe to call on every exit path.
func (s *Session) Invalidate() {
	s.token = ""
	s.expires = time.Time{}
	if s.state != StateFailed {
		s.state = StateUnauthenticated
	}
}

// TokenURL returns the token endpoint for the portal.
func (s *Session) TokenURL() string {
	return s.host + "/sharing/rest/generateToken"
}

func (s *Session) generateToken(ctx context.Context) error {
	form := url.Values{
		"username":   {s.username},
		"password":   {s.password},
		"client":     {"referer"},
		"referer":    {s.host},
		"expiration": {fmt.Sprintf("%d", int(s.tokenExpiry.Minutes()))},
		"f":          {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return errors.WrapConnection("feature-service", s.host, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.WrapConnection("feature-service", s.host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapConnection("feature-service", s.host, err)
	}
	if resp.StatusCode >= 500 {
		return &errors.TransientError{StatusCode: resp.StatusCode, Err: errors.New("token endpoint unavailable")}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return errors.WrapConnection("feature-service", s.host, err)
	}
	if tr.Error != nil || tr.Token == "" {
		msg := "no token returned"
		if tr.Error != nil {
			msg = tr.Error.Message
		}
		return &errors.AuthError{Host: s.host, Message: msg}
	}

	s.token = tr.Token
	s.expires = time.UnixMilli(tr.Expires)
	return nil
}

func (s *Session) fetchAccountInfo(ctx context.Context) (*AccountInfo, error) {
	selfURL := fmt.Sprintf("%s/sharing/rest/community/self?f=json&token=%s", s.host, url.QueryEscape(s.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, selfURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	if info.Username == "" {
		return nil, errors.ErrNotFound
	}
	return &info, nil
}
