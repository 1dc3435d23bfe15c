package market

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/config"
	"github.com/quadmarket/gateway/internal/session"
)

// authedJar builds a request-scoped jar carrying a full credential bundle,
// returning the recorder so response cookies can be inspected.
func authedJar(t *testing.T, accessToken string) (*session.Jar, *httptest.ResponseRecorder) {
	t.Helper()
	expiry := time.Now().Add(time.Hour).UnixMilli()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.CookieIDToken, Value: "ID1"})
	r.AddCookie(&http.Cookie{Name: session.CookieAccessToken, Value: accessToken})
	r.AddCookie(&http.Cookie{Name: session.CookieRefreshToken, Value: "RT1"})
	r.AddCookie(&http.Cookie{Name: session.CookieExpiresAt, Value: strconv.FormatInt(expiry, 10)})
	rec := httptest.NewRecorder()
	return session.NewJar(rec, r, session.JarOptions{RefreshTokenMaxAge: 720 * time.Hour}), rec
}

func emptyJar(t *testing.T) *session.Jar {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	return session.NewJar(httptest.NewRecorder(), r, session.JarOptions{})
}

func newTestClient(baseURL string, production bool) *Client {
	return NewClient(config.API{BaseURL: baseURL, Timeout: 5 * time.Second}, production)
}

func TestClient_NoBundleFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, false)
	_, err := c.Do(context.Background(), emptyJar(t), http.MethodGet, "/market/user/me/", nil)

	require.ErrorIs(t, err, ErrNoAccessToken)
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatusCode(err))
	assert.Equal(t, "No valid access token available", errors.PublicMessage(err))
	assert.False(t, called, "no network call may be made without a token")
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	jar, _ := authedJar(t, "AT1")
	c := newTestClient(srv.URL, false)
	raw, err := c.Do(context.Background(), jar, http.MethodGet, "/market/user/me/", nil)

	require.NoError(t, err)
	assert.Equal(t, "Bearer AT1", gotAuth)
	assert.Empty(t, gotContentType, "GET without a body carries no content type")
	assert.JSONEq(t, `{"ok": true}`, string(raw))
}

func TestClient_JSONBodySetsContentType(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	jar, _ := authedJar(t, "AT1")
	c := newTestClient(srv.URL, false)
	_, err := c.Do(context.Background(), jar, http.MethodPost, "/market/listings/1/offers/",
		OfferPayload{OfferedPrice: "25.00"})

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"offered_price": "25.00"}`, gotBody)
}

func TestClient_UnauthorizedTearsDownSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	jar, rec := authedJar(t, "AT1")
	c := newTestClient(srv.URL, false)
	_, err := c.Do(context.Background(), jar, http.MethodGet, "/market/user/me/", nil)

	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, "Authentication failed", errors.PublicMessage(err))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 4, "all four cookies must be cleared")
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}
}

func TestClient_ServerErrorMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail": "upstream exploded: secret stack trace"}`))
	}))
	defer srv.Close()

	tests := []struct {
		name       string
		production bool
		want       string
	}{
		{"production hides status", true, "API request failed"},
		{"development includes status", false, "API request failed: 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jar, _ := authedJar(t, "AT1")
			c := newTestClient(srv.URL, tt.production)
			_, err := c.Do(context.Background(), jar, http.MethodGet, "/market/listings/", nil)

			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, http.StatusBadGateway, reqErr.Status)
			assert.Equal(t, tt.want, reqErr.Message)
			assert.NotContains(t, reqErr.Message, "stack trace", "5xx bodies never leak")
		})
	}
}

func TestClient_ClientErrorExtractsFieldMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"additional_data": {"start_date": "Required"}}`))
	}))
	defer srv.Close()

	jar, _ := authedJar(t, "AT1")
	c := newTestClient(srv.URL, true)
	_, err := c.Do(context.Background(), jar, http.MethodPost, "/market/listings/", map[string]string{})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Start Date: Required", reqErr.Message)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))
}

func TestClient_ClientErrorWithoutFieldsIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	jar, _ := authedJar(t, "AT1")
	c := newTestClient(srv.URL, true)
	_, err := c.Do(context.Background(), jar, http.MethodGet, "/market/offers/received/", nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "API request failed: 403", reqErr.Message)
}

func TestClient_NetworkUnreachable(t *testing.T) {
	// A closed server guarantees a transport-level failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	jar, _ := authedJar(t, "AT1")
	c := newTestClient(srv.URL, true)
	_, err := c.Do(context.Background(), jar, http.MethodGet, "/market/user/me/", nil)

	require.ErrorIs(t, err, ErrNetworkUnreachable)
	assert.Equal(t, http.StatusBadGateway, errors.HTTPStatusCode(err))
	assert.Equal(t, "Unable to reach the marketplace service", errors.PublicMessage(err))
}

func TestClient_GetOrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/404/") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Not found."}`))
			return
		}
		w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, true)

	jar, _ := authedJar(t, "AT1")
	raw, found, err := c.GetOrNotFound(context.Background(), jar, "/market/listings/7/")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id": 7}`, string(raw))

	jar, _ = authedJar(t, "AT1")
	_, found, err = c.GetOrNotFound(context.Background(), jar, "/market/listings/404/")
	require.NoError(t, err, "404 is an outcome, not an error")
	assert.False(t, found)
}

func TestClient_MultipartKeepsCallerContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("images", "photo.jpg")
	require.NoError(t, err)
	part.Write([]byte("jpegbytes"))
	require.NoError(t, mw.Close())

	jar, _ := authedJar(t, "AT1")
	c := newTestClient(srv.URL, true)
	err = c.UploadImages(context.Background(), jar, 7, strings.NewReader(buf.String()), mw.FormDataContentType())

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data; boundary="))
}

func TestListingQuery_Encode(t *testing.T) {
	q := ListingQuery{
		Type:     ListingTypeSublet,
		Beds:     2,
		MinPrice: "500",
		Limit:    20,
		Offset:   40,
	}
	v := q.Encode()
	assert.Equal(t, "sublet", v.Get("type"))
	assert.Equal(t, "2", v.Get("beds"))
	assert.Equal(t, "500", v.Get("min_price"))
	assert.Equal(t, "20", v.Get("limit"))
	assert.Equal(t, "40", v.Get("offset"))
	assert.NotContains(t, v, "baths", "zero values are omitted")
	assert.NotContains(t, v, "title")
}

func TestListing_AdditionalDataDecoding(t *testing.T) {
	item := Listing{
		ListingType:    ListingTypeItem,
		AdditionalData: json.RawMessage(`{"condition": "used", "category": "furniture"}`),
	}
	d, err := item.ItemData()
	require.NoError(t, err)
	assert.Equal(t, "used", d.Condition)
	assert.Equal(t, "furniture", d.Category)

	sublet := Listing{
		ListingType:    ListingTypeSublet,
		AdditionalData: json.RawMessage(`{"address": "12 College Ave", "beds": 3, "baths": 1, "start_date": "2026-06-01", "end_date": "2026-08-15"}`),
	}
	s, err := sublet.SubletData()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Beds)
	assert.Equal(t, "2026-08-15", s.EndDate)

	empty := Listing{}
	_, err = empty.ItemData()
	assert.NoError(t, err, "absent additional data decodes to zero value")
}
