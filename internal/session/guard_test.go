package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadmarket/gateway/internal/oidc"
)

type fakeProvider struct {
	refreshCalls int32
	refreshed    oidc.Tokens
	refreshErr   error
	loginErr     error

	// blockRefresh, when set, makes Refresh wait until released. Used to
	// hold concurrent requests inside the single-flight window.
	blockRefresh chan struct{}
	started      chan struct{}
}

func (f *fakeProvider) LoginURL(state string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "https://idp.example.com/accounts/authorize/?state=" + url.QueryEscape(state), nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (oidc.Tokens, error) {
	n := atomic.AddInt32(&f.refreshCalls, 1)
	if f.started != nil && n == 1 {
		close(f.started)
	}
	if f.blockRefresh != nil {
		<-f.blockRefresh
	}
	if f.refreshErr != nil {
		return oidc.Tokens{}, f.refreshErr
	}
	return f.refreshed, nil
}

func newTestGuard(p Provider, now time.Time) *Guard {
	return NewGuard(p,
		NewPathMatcher([]string{"/", "/items", "/items/*", "/sublets", "/sublets/*"}),
		5*time.Minute,
		testJarOpts,
		WithClock(func() time.Time { return now }),
	)
}

func okHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuard_UnprotectedPathPassesThrough(t *testing.T) {
	var calls int32
	p := &fakeProvider{}
	handler := newTestGuard(p, time.Now()).Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), calls)
}

func TestGuard_NoCookiesRedirectsToLogin(t *testing.T) {
	var calls int32
	handler := newTestGuard(&fakeProvider{}, time.Now()).Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", loc.Host)
	assert.Equal(t, "/items", loc.Query().Get("state"))
	assert.Equal(t, int32(0), calls, "handler must not run")
}

func TestGuard_MissingClientIDIsConfigFailure(t *testing.T) {
	var calls int32
	p := &fakeProvider{loginErr: oidc.ErrMissingClientID}
	handler := newTestGuard(p, time.Now()).Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Missing client ID", body["error"])
}

func TestGuard_FreshTokenNeverRefreshes(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{}
	var calls int32
	handler := newTestGuard(p, now).Middleware(okHandler(&calls))

	bundle := Bundle{
		IDToken: "ID1", AccessToken: "AT1", RefreshToken: "RT1",
		ExpiresAt: now.Add(time.Hour),
	}

	// Idempotent for any number of repeated calls.
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithBundle(t, bundle))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, int32(5), calls)
	assert.Equal(t, int32(0), atomic.LoadInt32(&p.refreshCalls))
}

func TestGuard_SkewBufferBoundary(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		expiresAt   time.Time
		wantRefresh bool
	}{
		{"exactly five minutes out", now.Add(5 * time.Minute), true},
		{"five minutes and one millisecond out", now.Add(5*time.Minute + time.Millisecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{refreshed: oidc.Tokens{AccessToken: "AT2", RefreshToken: "RT2", ExpiresIn: 3600}}
			var calls int32
			handler := newTestGuard(p, now).Middleware(okHandler(&calls))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestWithBundle(t, Bundle{
				IDToken: "ID1", AccessToken: "AT1", RefreshToken: "RT1",
				ExpiresAt: tt.expiresAt,
			}))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, int32(1), calls)
			if tt.wantRefresh {
				assert.Equal(t, int32(1), atomic.LoadInt32(&p.refreshCalls))
			} else {
				assert.Equal(t, int32(0), atomic.LoadInt32(&p.refreshCalls))
			}
		})
	}
}

func TestGuard_RefreshSuccessAttachesCookies(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{refreshed: oidc.Tokens{AccessToken: "AT2", RefreshToken: "RT2", ExpiresIn: 3600}}
	var calls int32
	handler := newTestGuard(p, now).Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithBundle(t, Bundle{
		IDToken: "ID1", AccessToken: "AT1", RefreshToken: "RT1",
		ExpiresAt: now.Add(time.Minute),
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), calls)

	cookies := cookiesByName(rec)
	require.Contains(t, cookies, CookieAccessToken)
	assert.Equal(t, "AT2", cookies[CookieAccessToken].Value)
	assert.Equal(t, "RT2", cookies[CookieRefreshToken].Value)
	assert.NotContains(t, cookies, CookieIDToken, "id token is not reissued on refresh")
}

func TestGuard_RefreshRejectedClearsAndRedirects(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{refreshErr: oidc.ErrTokenExchangeFailed}
	var calls int32
	handler := newTestGuard(p, now).Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithBundle(t, Bundle{
		IDToken: "ID1", AccessToken: "AT1", RefreshToken: "RT1",
		ExpiresAt: now.Add(-time.Minute),
	}))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, int32(0), calls, "handler must not run")

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 4, "teardown must clear all four cookies on the redirect response")
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestGuard_RefreshConfigErrorIsNotARedirect(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{refreshErr: oidc.ErrMissingClientCredentials}
	var calls int32
	handler := newTestGuard(p, now).Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithBundle(t, Bundle{
		IDToken: "ID1", AccessToken: "AT1", RefreshToken: "RT1",
		ExpiresAt: now.Add(-time.Minute),
	}))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int32(0), calls)
}

func TestGuard_ConcurrentRefreshesShareOneExchange(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{
		refreshed:    oidc.Tokens{AccessToken: "AT2", RefreshToken: "RT2", ExpiresIn: 3600},
		blockRefresh: make(chan struct{}),
		started:      make(chan struct{}),
	}
	var calls int32
	handler := newTestGuard(p, now).Middleware(okHandler(&calls))

	bundle := Bundle{
		IDToken: "ID1", AccessToken: "AT1", RefreshToken: "RT1",
		ExpiresAt: now.Add(time.Minute),
	}

	const concurrency = 5
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestWithBundle(t, bundle))
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}

	// Hold the first exchange open long enough for the rest to pile onto
	// the same single-flight key, then release everyone at once.
	<-p.started
	time.Sleep(50 * time.Millisecond)
	close(p.blockRefresh)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.refreshCalls),
		"concurrent expiring requests must share one refresh exchange")
	assert.Equal(t, int32(concurrency), calls)
}
