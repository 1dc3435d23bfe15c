// Package market is the authorized request gateway to the backing
// marketplace API. Every server-side call flows through Client.Do, which
// attaches the bearer token from the request's credential bundle and maps
// failures onto a closed error taxonomy. The client never refreshes tokens —
// by the time a request reaches it on a protected path, the session guard
// has already run.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/config"
	"github.com/quadmarket/gateway/internal/metrics"
	"github.com/quadmarket/gateway/internal/session"
	"github.com/quadmarket/gateway/logging"
)

var (
	// ErrNoAccessToken is returned when the gateway is invoked without a
	// usable bundle. No network call is made.
	ErrNoAccessToken = errors.New("market: no access token").
				WithHTTPStatusCode(http.StatusUnauthorized).
				WithPublicMessage("No valid access token available")

	// ErrNetworkUnreachable replaces transport-level failures; the raw
	// error goes to the logs, never to the caller.
	ErrNetworkUnreachable = errors.New("market: api unreachable").
				WithHTTPStatusCode(http.StatusBadGateway).
				WithPublicMessage("Unable to reach the marketplace service")

	// ErrSessionExpired signals that the backing API rejected the access
	// token outright. The bundle has already been cleared when this is
	// returned; the web layer turns it into a login redirect rather than
	// an error page.
	ErrSessionExpired = errors.New("market: session rejected by api").
				WithHTTPStatusCode(http.StatusUnauthorized).
				WithPublicMessage("Authentication failed")
)

// RequestError is a non-2xx answer from the backing API. For 4xx responses
// Message carries the best available field-level detail; for 5xx it is
// generic in production so internal error text never leaks.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("market: api request failed: %d: %s", e.Status, e.Message)
}

// HTTPStatusCode implements the errors package's status interface.
func (e *RequestError) HTTPStatusCode() int { return e.Status }

// PublicMessage implements the errors package's public message interface.
func (e *RequestError) PublicMessage() string { return e.Message }

// IsNotFound reports whether err is a RequestError for a 404.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return goerrors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound
}

// Client calls the backing marketplace API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	production bool
}

// NewClient builds the API client. production controls how much 5xx detail
// is surfaced to callers.
func NewClient(cfg config.API, production bool) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		production: production,
	}
}

// Do performs an authorized JSON request. body, when non-nil, is marshalled
// and sent with a JSON content type; without a body no content type is set.
// The returned RawMessage is the response body as-is — the gateway does no
// further transformation. A nil RawMessage with nil error means an empty
// success response (e.g. a 204 from a delete).
func (c *Client) Do(ctx context.Context, jar *session.Jar, method, endpoint string, body any) (json.RawMessage, error) {
	var reader io.Reader
	hasBody := body != nil
	if hasBody {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapPrefix(err, "market: encoding request body", 0)
		}
		reader = bytes.NewReader(payload)
	}

	return c.dispatch(ctx, jar, method, endpoint, reader, func(req *http.Request) {
		if hasBody {
			req.Header.Set("Content-Type", "application/json")
		}
	})
}

// DoMultipart performs an authorized request with a caller-built body, e.g.
// a multipart upload. No JSON content type is forced so the transport can
// carry its own boundary header.
func (c *Client) DoMultipart(ctx context.Context, jar *session.Jar, method, endpoint string, body io.Reader, contentType string) (json.RawMessage, error) {
	return c.dispatch(ctx, jar, method, endpoint, body, func(req *http.Request) {
		req.Header.Set("Content-Type", contentType)
	})
}

// GetOrNotFound fetches an endpoint and reports a 404 as a distinct "not
// found" outcome rather than an error, so callers can render a not-found
// view. Every other failure propagates unchanged.
func (c *Client) GetOrNotFound(ctx context.Context, jar *session.Jar, endpoint string) (json.RawMessage, bool, error) {
	raw, err := c.Do(ctx, jar, http.MethodGet, endpoint, nil)
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *Client) dispatch(ctx context.Context, jar *session.Jar, method, endpoint string, body io.Reader, decorate func(*http.Request)) (json.RawMessage, error) {
	bundle, ok := jar.Read()
	if !ok || bundle.AccessToken == "" {
		return nil, errors.Mark(ErrNoAccessToken, 0)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, errors.WrapPrefix(err, "market: building request", 0)
	}
	req.Header.Set("Authorization", "Bearer "+bundle.AccessToken)
	decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues("network_error").Inc()
		logging.Errorw(ctx, "market: transport failure", "method", method, "endpoint", endpoint, "error", err)
		return nil, errors.Mark(ErrNetworkUnreachable, 0)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues("network_error").Inc()
		logging.Errorw(ctx, "market: reading response", "endpoint", endpoint, "error", err)
		return nil, errors.Mark(ErrNetworkUnreachable, 0)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// The access token is no longer valid despite the guard's
		// proactive refresh (server-side revocation, most likely).
		// Fail closed: tear the whole session down.
		metrics.APIRequests.WithLabelValues("unauthorized").Inc()
		logging.Warnw(ctx, "market: api rejected access token, clearing session", "endpoint", endpoint)
		jar.Clear()
		return nil, errors.Mark(ErrSessionExpired, 0)

	case resp.StatusCode >= http.StatusInternalServerError:
		metrics.APIRequests.WithLabelValues("server_error").Inc()
		logging.Errorw(ctx, "market: api server error",
			"endpoint", endpoint, "status", resp.StatusCode)
		msg := "API request failed"
		if !c.production {
			msg = fmt.Sprintf("API request failed: %d", resp.StatusCode)
		}
		return nil, errors.Mark(&RequestError{Status: resp.StatusCode, Message: msg}, 0)

	case resp.StatusCode >= http.StatusMultipleChoices:
		metrics.APIRequests.WithLabelValues("client_error").Inc()
		msg := fmt.Sprintf("API request failed: %d", resp.StatusCode)
		if fieldMsg, found := FirstFieldError(payload); found {
			msg = fieldMsg
		}
		return nil, errors.Mark(&RequestError{Status: resp.StatusCode, Message: msg}, 0)
	}

	metrics.APIRequests.WithLabelValues("ok").Inc()
	if len(payload) == 0 {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}
