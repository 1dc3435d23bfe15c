// Package session owns browser session state. The credential bundle lives
// entirely in the request's cookie jar; no component caches it across
// requests. The Jar is the only code in the repository that touches raw
// cookies — everything else reads and writes through it.
package session

import (
	"net/http"
	"strconv"
	"time"

	"github.com/quadmarket/gateway/internal/oidc"
)

// Cookie names for the four-part credential bundle. CookieExpiresAt holds
// the access token's absolute expiry as epoch milliseconds; the name is kept
// as "expires_in" for compatibility with bundles issued by earlier builds.
const (
	CookieIDToken      = "id_token"
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieExpiresAt    = "expires_in"
)

// State of a session, derived per request and never cached.
type State int

const (
	// Unauthenticated means no usable bundle: all four parts must be
	// readable or the bundle is treated as fully absent.
	Unauthenticated State = iota

	// RefreshableExpired means the access token is inside the skew buffer
	// but a refresh token is present.
	RefreshableExpired

	// Authenticated means the access token is present and not within the
	// skew buffer.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case RefreshableExpired:
		return "refreshable"
	default:
		return "unauthenticated"
	}
}

// Bundle is the unit of session state. The zero value means absent.
type Bundle struct {
	IDToken      string
	AccessToken  string
	RefreshToken string

	// ExpiresAt is the access token's absolute expiry.
	ExpiresAt time.Time
}

// Present reports whether all four parts were readable.
func (b Bundle) Present() bool {
	return b.IDToken != "" && b.AccessToken != "" && b.RefreshToken != "" && !b.ExpiresAt.IsZero()
}

// State derives the session state at the given instant. The buffer is
// inclusive: a token expiring in exactly `buffer` is already expiring.
func (b Bundle) State(now time.Time, buffer time.Duration) State {
	if !b.Present() {
		return Unauthenticated
	}
	if !now.Before(b.ExpiresAt.Add(-buffer)) {
		return RefreshableExpired
	}
	return Authenticated
}

// JarOptions configure cookie attributes.
type JarOptions struct {
	// Secure marks cookies https-only. On in production.
	Secure bool

	// RefreshTokenMaxAge is the refresh token cookie's fixed validity
	// window, independent of the access token's window.
	RefreshTokenMaxAge time.Duration
}

// Jar reads and writes the credential bundle on a single request/response
// pair. It is request-scoped by construction: handlers build one from their
// own ResponseWriter and Request, which keeps concurrent users isolated
// without any process-wide session state.
type Jar struct {
	w    http.ResponseWriter
	r    *http.Request
	opts JarOptions
}

// NewJar wraps a request/response pair.
func NewJar(w http.ResponseWriter, r *http.Request, opts JarOptions) *Jar {
	return &Jar{w: w, r: r, opts: opts}
}

// Read returns the credential bundle from the request cookies. A partial
// bundle — any of the four cookies missing or malformed — degrades to
// (Bundle{}, false) so a half-written session can never authorize anything.
func (j *Jar) Read() (Bundle, bool) {
	idToken := j.cookieValue(CookieIDToken)
	accessToken := j.cookieValue(CookieAccessToken)
	refreshToken := j.cookieValue(CookieRefreshToken)
	expiresAt := j.cookieValue(CookieExpiresAt)

	if idToken == "" || accessToken == "" || refreshToken == "" || expiresAt == "" {
		return Bundle{}, false
	}

	ms, err := strconv.ParseInt(expiresAt, 10, 64)
	if err != nil {
		return Bundle{}, false
	}

	return Bundle{
		IDToken:      idToken,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.UnixMilli(ms),
	}, true
}

// Write stores a credential bundle issued at `now`. The access token and
// expiry marker cookies live for ExpiresIn seconds; the refresh token cookie
// for its own fixed window. An empty IDToken (the refresh path — the
// provider does not reissue it) leaves the existing id_token cookie alone.
func (j *Jar) Write(t oidc.Tokens, now time.Time) {
	if t.IDToken != "" {
		j.set(CookieIDToken, t.IDToken, t.ExpiresIn)
	}
	j.set(CookieAccessToken, t.AccessToken, t.ExpiresIn)
	j.set(CookieRefreshToken, t.RefreshToken, int(j.opts.RefreshTokenMaxAge.Seconds()))

	expiryMs := now.Add(time.Duration(t.ExpiresIn) * time.Second).UnixMilli()
	j.set(CookieExpiresAt, strconv.FormatInt(expiryMs, 10), t.ExpiresIn)
}

// Clear removes all four cookies. Used for fail-closed teardown when the
// backing API rejects the access token, and on logout.
func (j *Jar) Clear() {
	for _, name := range []string{CookieIDToken, CookieAccessToken, CookieRefreshToken, CookieExpiresAt} {
		http.SetCookie(j.w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   j.opts.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (j *Jar) cookieValue(name string) string {
	c, err := j.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (j *Jar) set(name, value string, maxAge int) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
