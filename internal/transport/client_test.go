package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// testService is a minimal portal stub: a token endpoint plus a single
// operation endpoint whose behavior is scripted per test.
type testService struct {
	server *httptest.Server

	tokenCalls int32
	opCalls    int32

	rejectCredentials bool
	opHandler         func(calls int32, w http.ResponseWriter, r *http.Request)
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	ts := &testService{}

	mux := http.NewServeMux()
	mux.HandleFunc("/sharing/rest/generateToken", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&ts.tokenCalls, 1)
		if ts.rejectCredentials {
			fmt.Fprint(w, `{"error":{"code":400,"message":"Invalid username or password."}}`)
			return
		}
		expires := time.Now().Add(time.Hour).UnixMilli()
		fmt.Fprintf(w, `{"token":"tok-%d","expires":%d}`, n, expires)
	})
	mux.HandleFunc("/sharing/rest/community/self", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"username":"svc_bcparks","role":"org_publisher","userLicenseTypeId":"creatorUT"}`)
	})
	mux.HandleFunc("/layer/op", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&ts.opCalls, 1)
		ts.opHandler(n, w, r)
	})

	ts.server = httptest.NewServer(mux)
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testService) client() *Client {
	return NewClient(Config{
		Host:           ts.server.URL,
		Username:       "svc_bcparks",
		Password:       "secret",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		RateLimit:      1000,
		RateBurst:      100,
	})
}

func (ts *testService) opURL() string { return ts.server.URL + "/layer/op" }

func TestConnectAndAccountInfo(t *testing.T) {
	ts := newTestService(t)
	c := ts.client()

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateAuthenticated, c.Session().State())
	assert.Equal(t, "tok-1", c.Session().Token())

	require.NotNil(t, c.Session().Account())
	assert.Equal(t, "svc_bcparks", c.Session().Account().Username)
	assert.Equal(t, "org_publisher", c.Session().Account().Role)

	c.Close()
	assert.Empty(t, c.Session().Token())
	assert.Equal(t, StateUnauthenticated, c.Session().State())
}

func TestConnectRejectedCredentials(t *testing.T) {
	ts := newTestService(t)
	ts.rejectCredentials = true
	c := ts.client()

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuthRejected(err))
	assert.Equal(t, StateFailed, c.Session().State())
}

func TestPostFormSuccess(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(_ int32, w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-1", r.Form.Get("token"))
		assert.Equal(t, "json", r.Form.Get("f"))
		fmt.Fprint(w, `{"success":true}`)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	var out struct {
		Success bool `json:"success"`
	}
	require.NoError(t, c.PostForm(context.Background(), ts.opURL(), url.Values{"where": {"1=1"}}, &out))
	assert.True(t, out.Success)
}

// An expired-token signal triggers exactly one re-authentication and one
// retry of the failed request.
func TestReauthenticateOnceAndRetry(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(calls int32, w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("token") == "tok-1" {
			fmt.Fprint(w, `{"error":{"code":498,"message":"Invalid token"}}`)
			return
		}
		fmt.Fprint(w, `{"success":true}`)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.PostForm(context.Background(), ts.opURL(), url.Values{}, nil))
	assert.EqualValues(t, 2, atomic.LoadInt32(&ts.tokenCalls), "exactly one re-authentication")
	assert.EqualValues(t, 2, atomic.LoadInt32(&ts.opCalls), "failed operation retried exactly once")
	assert.Equal(t, StateAuthenticated, c.Session().State())
}

// A second expiry within the same operation aborts: the error is no
// longer retryable and the session is failed.
func TestSecondExpiryAborts(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(_ int32, w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":498,"message":"Invalid token"}}`)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	err := c.PostForm(context.Background(), ts.opURL(), url.Values{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsAuthRejected(err))
	assert.False(t, errors.IsAuthExpired(err))
	assert.Equal(t, StateFailed, c.Session().State())
	assert.EqualValues(t, 2, atomic.LoadInt32(&ts.tokenCalls))
}

func TestTransientErrorsRetryWithBoundedAttempts(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(calls int32, w http.ResponseWriter, r *http.Request) {
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"success":true}`)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.PostForm(context.Background(), ts.opURL(), url.Values{}, nil))
	assert.EqualValues(t, 3, atomic.LoadInt32(&ts.opCalls), "two 503s then success")
}

func TestTransientExhaustionSurfacesError(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(_ int32, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	err := c.PostForm(context.Background(), ts.opURL(), url.Values{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	// MaxRetries=2 means three attempts total.
	assert.EqualValues(t, 3, atomic.LoadInt32(&ts.opCalls))
}

func TestValidationErrorsAreNotRetried(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(_ int32, w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":400,"message":"Unable to complete operation."}}`)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	err := c.PostForm(context.Background(), ts.opURL(), url.Values{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsRemoteValidation(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&ts.opCalls), "validation errors surface immediately")
}

func TestRefreshRequiresExpiredState(t *testing.T) {
	s := NewSession("https://example.invalid", "u", "p", nil, time.Hour)
	err := s.Refresh(context.Background())
	require.Error(t, err)
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "expired", StateExpired.String())
	assert.Equal(t, "reauthenticating", StateReauthenticating.String())
	assert.Equal(t, "failed", StateFailed.String())
}

func TestTokenNotLeakedIntoCallerForm(t *testing.T) {
	ts := newTestService(t)
	ts.opHandler = func(_ int32, w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}
	c := ts.client()
	require.NoError(t, c.Connect(context.Background()))

	form := url.Values{"where": {"1=1"}}
	require.NoError(t, c.PostForm(context.Background(), ts.opURL(), form, nil))
	assert.False(t, strings.Contains(form.Encode(), "token"), "caller's form must stay token-free")
}
