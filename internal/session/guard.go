package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/metrics"
	"github.com/quadmarket/gateway/internal/oidc"
	"github.com/quadmarket/gateway/logging"
)

// Provider is the slice of the oidc client the guard needs.
type Provider interface {
	LoginURL(state string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (oidc.Tokens, error)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClock overrides the guard's time source.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

// Guard runs ahead of every protected request. It reads the credential
// bundle, decides whether the session is valid, expiring, or absent, and
// either passes the request through, refreshes inline, or redirects to the
// provider's login page.
//
// This is the only place a refresh is attempted preemptively; the market
// client only ever consumes whatever bundle is current.
type Guard struct {
	provider Provider
	matcher  *PathMatcher
	skew     time.Duration
	jarOpts  JarOptions
	now      func() time.Time

	// group collapses concurrent refreshes of the same refresh token into
	// one exchange. Providers commonly issue single-use refresh tokens, so
	// two racing refreshes would log out a session that was fine.
	group singleflight.Group
}

// NewGuard builds the middleware. skew is how long before actual expiry a
// token is treated as expiring, so requests never race a token that is
// valid now but expires mid-flight.
func NewGuard(provider Provider, matcher *PathMatcher, skew time.Duration, jarOpts JarOptions, opts ...GuardOption) *Guard {
	g := &Guard{
		provider: provider,
		matcher:  matcher,
		skew:     skew,
		jarOpts:  jarOpts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware wraps a handler with the session check.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.matcher.Match(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		jar := NewJar(w, r, g.jarOpts)
		bundle, _ := jar.Read()

		switch bundle.State(g.now(), g.skew) {
		case Authenticated:
			if id, ok := IdentityFromBundle(bundle); ok {
				logging.Track(ctx, "subject", id.Subject)
			}
			metrics.GuardDecisions.WithLabelValues("pass").Inc()
			next.ServeHTTP(w, r)

		case RefreshableExpired:
			g.refreshAndContinue(w, r, jar, bundle, next)

		default:
			metrics.GuardDecisions.WithLabelValues("login_redirect").Inc()
			g.redirectToLogin(w, r)
		}
	})
}

// refreshAndContinue performs the inline refresh. The guarded request does
// not proceed until the exchange completes. On failure the stale cookies
// are cleared on the same response that carries the login redirect, so the
// browser never ends up half logged out.
func (g *Guard) refreshAndContinue(w http.ResponseWriter, r *http.Request, jar *Jar, bundle Bundle, next http.Handler) {
	ctx := r.Context()

	v, err, shared := g.group.Do(bundle.RefreshToken, func() (interface{}, error) {
		return g.provider.Refresh(ctx, bundle.RefreshToken)
	})
	if shared {
		metrics.RefreshShared.Inc()
	}

	if err != nil {
		if errors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			// Configuration or transport problems are not the user's
			// fault; bouncing them to login would loop forever.
			metrics.GuardDecisions.WithLabelValues("config_error").Inc()
			logging.Errorw(ctx, "guard: refresh failed", "error", err)
			writeError(w, err)
			return
		}
		metrics.GuardDecisions.WithLabelValues("login_redirect").Inc()
		logging.Infow(ctx, "guard: refresh rejected, treating as logged out", "error", err)
		jar.Clear()
		g.redirectToLogin(w, r)
		return
	}

	tokens := v.(oidc.Tokens)
	jar.Write(tokens, g.now())
	metrics.GuardDecisions.WithLabelValues("refresh").Inc()
	logging.Infow(ctx, "guard: session refreshed", "expiresIn", tokens.ExpiresIn)
	next.ServeHTTP(w, r)
}

func (g *Guard) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	loginURL, err := g.provider.LoginURL(r.URL.Path)
	if err != nil {
		logging.Errorw(r.Context(), "guard: cannot build login url", "error", err)
		writeError(w, err)
		return
	}
	http.Redirect(w, r, loginURL, http.StatusFound)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": errors.PublicMessage(err)})
}
