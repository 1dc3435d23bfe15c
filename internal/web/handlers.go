// Package web wires the gateway's HTTP surface: the OIDC callback and
// logout endpoints, the session-guarded marketplace routes, and the
// operational endpoints.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/market"
	"github.com/quadmarket/gateway/internal/oidc"
	"github.com/quadmarket/gateway/internal/session"
	"github.com/quadmarket/gateway/logging"
)

// ErrNoAuthorizationCode is returned when the provider redirects back to the
// callback without a code parameter.
var ErrNoAuthorizationCode = errors.New("web: callback missing authorization code").
	WithHTTPStatusCode(http.StatusUnauthorized).
	WithPublicMessage("No authorization code provided")

// Handlers holds the gateway's HTTP handlers and their dependencies.
type Handlers struct {
	oidc    *oidc.Client
	market  *market.Client
	jarOpts session.JarOptions
	now     func() time.Time
}

// NewHandlers builds the handler set.
func NewHandlers(oidcClient *oidc.Client, marketClient *market.Client, jarOpts session.JarOptions) *Handlers {
	return &Handlers{
		oidc:    oidcClient,
		market:  marketClient,
		jarOpts: jarOpts,
		now:     time.Now,
	}
}

// Callback completes the authorization-code flow. The provider redirects
// here with a code and the state the login redirect stashed the original
// path in. On success the full credential bundle is written and the browser
// is sent back where it was headed.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.URL.Query().Get("code")
	if code == "" {
		logging.Warnw(ctx, "callback: no authorization code in redirect")
		h.respondError(w, r, errors.Mark(ErrNoAuthorizationCode, 0))
		return
	}

	tokens, err := h.oidc.Exchange(ctx, code)
	if err != nil {
		logging.Errorw(ctx, "callback: exchange failed", "error", err)
		h.respondError(w, r, err)
		return
	}

	jar := session.NewJar(w, r, h.jarOpts)
	jar.Write(tokens, h.now())

	logging.Infow(ctx, "callback: session established", "expiresIn", tokens.ExpiresIn)
	http.Redirect(w, r, safeReturnPath(r.URL.Query().Get("state")), http.StatusFound)
}

// Logout clears the credential bundle and sends the browser home. The
// provider session is untouched; only this gateway's cookies are dropped.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session.NewJar(w, r, h.jarOpts).Clear()
	logging.Infow(r.Context(), "logout: session cleared")
	http.Redirect(w, r, "/", http.StatusFound)
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status": "ok"}`))
}

// respondError renders an error using its taxonomy status and public
// message. A session torn down by the backing API turns into a fresh login
// redirect instead of an error page.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logging.TrackError(ctx, err)

	if errors.Is(err, market.ErrSessionExpired) {
		loginURL, loginErr := h.oidc.LoginURL(r.URL.Path)
		if loginErr == nil {
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}
		logging.Errorw(ctx, "respond: cannot build login url after teardown", "error", loginErr)
		err = loginErr
	}

	writeJSONError(w, err)
}

func writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": errors.PublicMessage(err)})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// decodeBody reads a request body as arbitrary JSON for relaying to the API.
func decodeBody(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := decodeInto(r, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func decodeInto(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.WrapPrefix(err, "web: decoding request body", 0).
			WithHTTPStatusCode(http.StatusBadRequest).
			WithPublicMessage("Invalid request body")
	}
	return nil
}

// safeReturnPath keeps post-login redirects on this origin. Anything that is
// not a plain absolute path falls back to the root.
func safeReturnPath(state string) string {
	if state == "" || !strings.HasPrefix(state, "/") || strings.HasPrefix(state, "//") {
		return "/"
	}
	return state
}
