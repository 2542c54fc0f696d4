package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":     "1234567890",
			"name":    "Ada Lovelace",
			"email":   "ada@example.com",
			"picture": "https://example.com/ada.png",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, googleURL string, now func() time.Time) *GoogleProvider {
	t.Helper()
	p, err := NewGoogleProvider(&GoogleConfig{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		Secret:        "auth-secret",
		TrustHost:     true,
		SessionMaxAge: time.Hour,
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleURL + "/auth",
			TokenURL: googleURL + "/token",
		},
		UserInfoURL: googleURL + "/userinfo",
		Now:         now,
	})
	require.NoError(t, err)
	return p
}

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func signIn(t *testing.T, p *GoogleProvider, target string) (*http.Cookie, url.Values) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, p.SignIn(rec, req))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return cookieFrom(t, rec, stateCookieName), loc.Query()
}

func TestNewGoogleProvider_Validation(t *testing.T) {
	_, err := NewGoogleProvider(&GoogleConfig{ClientSecret: "s", Secret: "x", TrustHost: true})
	assert.Error(t, err)

	_, err = NewGoogleProvider(&GoogleConfig{ClientID: "id", ClientSecret: "s", Secret: "x", TrustHost: false})
	assert.Error(t, err)

	_, err = NewGoogleProvider(&GoogleConfig{ClientID: "id", ClientSecret: "s", TrustHost: true})
	assert.Error(t, err)
}

func TestGoogleProvider_SignIn(t *testing.T) {
	google := fakeGoogle(t)
	p := newTestProvider(t, google.URL, time.Now)

	stateCookie, q := signIn(t, p, "http://app.example.com/auth/signin/google?callbackUrl=/notes")

	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://app.example.com/auth/callback/google", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
	assert.NotEmpty(t, q.Get("state"))
	assert.True(t, stateCookie.HttpOnly)
	assert.Equal(t, int(stateMaxAge.Seconds()), stateCookie.MaxAge)
}

func TestGoogleProvider_SignIn_UntrustedHostUsesBaseURL(t *testing.T) {
	p, err := NewGoogleProvider(&GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Secret:       "auth-secret",
		BaseURL:      "https://links.example.com/",
	})
	require.NoError(t, err)

	_, q := signIn(t, p, "http://spoofed.example.net/auth/signin/google")
	assert.Equal(t, "https://links.example.com/auth/callback/google", q.Get("redirect_uri"))
}

func TestGoogleProvider_CallbackAndSession(t *testing.T) {
	google := fakeGoogle(t)
	now := time.Now().Truncate(time.Second)
	p := newTestProvider(t, google.URL, func() time.Time { return now })

	stateCookie, q := signIn(t, p, "http://app.example.com/auth/signin/google?callbackUrl=/notes")

	cbURL := "http://app.example.com/auth/callback/google?code=good-code&state=" + url.QueryEscape(q.Get("state"))
	req := httptest.NewRequest(http.MethodGet, cbURL, nil)
	req.AddCookie(stateCookie)
	rec := httptest.NewRecorder()

	require.NoError(t, p.Callback(rec, req))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/notes", rec.Header().Get("Location"))

	sessionCookie := cookieFrom(t, rec, sessionCookieName)
	assert.Equal(t, 3600, sessionCookie.MaxAge)

	sessReq := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sessReq.AddCookie(sessionCookie)
	sess, err := p.Session(sessReq)
	require.NoError(t, err)
	require.NotNil(t, sess.User)
	assert.Equal(t, "1234567890", sess.User.ID)
	assert.Equal(t, "Ada Lovelace", sess.User.Name)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, "https://example.com/ada.png", sess.User.Image)
	assert.True(t, now.Add(time.Hour).Equal(sess.Expires))
}

func TestGoogleProvider_Callback_StateMismatch(t *testing.T) {
	google := fakeGoogle(t)
	p := newTestProvider(t, google.URL, time.Now)

	stateCookie, _ := signIn(t, p, "http://app.example.com/auth/signin/google")

	tests := []struct {
		name   string
		query  string
		cookie *http.Cookie
	}{
		{name: "no cookie", query: "code=good-code&state=abc"},
		{name: "wrong state", query: "code=good-code&state=abc", cookie: stateCookie},
		{name: "tampered cookie", query: "code=good-code&state=abc", cookie: &http.Cookie{Name: stateCookieName, Value: "x.y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://app.example.com/auth/callback/google?"+tt.query, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			err := p.Callback(httptest.NewRecorder(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStateMismatch))
		})
	}
}

func TestGoogleProvider_Callback_BadCode(t *testing.T) {
	google := fakeGoogle(t)
	p := newTestProvider(t, google.URL, time.Now)

	stateCookie, q := signIn(t, p, "http://app.example.com/auth/signin/google")
	req := httptest.NewRequest(http.MethodGet,
		"http://app.example.com/auth/callback/google?code=bad-code&state="+url.QueryEscape(q.Get("state")), nil)
	req.AddCookie(stateCookie)

	err := p.Callback(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to exchange authorization code")
}

func TestGoogleProvider_SignOutAndNoSession(t *testing.T) {
	p := newTestProvider(t, "http://unused.invalid", time.Now)

	_, err := p.Session(httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.True(t, errors.Is(err, ErrNoSession))

	rec := httptest.NewRecorder()
	p.SignOut(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))
	c := cookieFrom(t, rec, sessionCookieName)
	assert.Equal(t, "", c.Value)
	assert.True(t, c.MaxAge < 0)
}
