package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cnosuke/link-preview/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	callbackPath      = "/auth/callback/google"
	stateMaxAge       = 10 * time.Minute
)

var (
	// ErrStateMismatch is returned when the OAuth state does not match the state cookie.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrNoSession is returned by Session when the request is not signed in.
	ErrNoSession = errors.New("no session")
)

// Provider is the sign-in capability used by the HTTP layer.
type Provider interface {
	// SignIn starts the OAuth flow by redirecting to the identity provider.
	SignIn(w http.ResponseWriter, r *http.Request) error
	// Callback completes the OAuth flow and establishes a session.
	Callback(w http.ResponseWriter, r *http.Request) error
	// SignOut ends the session of r.
	SignOut(w http.ResponseWriter, r *http.Request)
	// Session returns the session of r, or ErrNoSession.
	Session(r *http.Request) (*types.Session, error)
}

type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	Secret        string
	TrustHost     bool
	BaseURL       string
	SessionMaxAge time.Duration

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
	Now         func() time.Time
}

// GoogleProvider implements Provider with Google OAuth 2.0 and signed
// cookie sessions. It keeps no server-side session state.
type GoogleProvider struct {
	oauth         oauth2.Config
	userInfoURL   string
	trustHost     bool
	baseURL       string
	sessionMaxAge time.Duration
	httpClient    *http.Client
	now           func() time.Time

	sessions *codec
	states   *codec
}

type statePayload struct {
	Nonce       string `json:"nonce"`
	CallbackURL string `json:"callback_url"`
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// NewGoogleProvider creates a GoogleProvider.
func NewGoogleProvider(cfg *GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client id and secret are required")
	}
	if !cfg.TrustHost && cfg.BaseURL == "" {
		return nil, errors.New("base url is required when the host is not trusted")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sessions, err := newCodec(cfg.Secret, "session", now)
	if err != nil {
		return nil, err
	}
	states, err := newCodec(cfg.Secret, "oauth state", now)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	maxAge := cfg.SessionMaxAge
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	zap.S().Infow("creating Google auth provider",
		"client_id", cfg.ClientID,
		"trust_host", cfg.TrustHost,
		"base_url", cfg.BaseURL,
		"session_max_age", maxAge)

	return &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL:   userInfoURL,
		trustHost:     cfg.TrustHost,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		sessionMaxAge: maxAge,
		httpClient:    httpClient,
		now:           now,
		sessions:      sessions,
		states:        states,
	}, nil
}

// SignIn redirects to Google's consent screen. The optional callbackUrl
// query parameter is where the user lands after signing in.
func (p *GoogleProvider) SignIn(w http.ResponseWriter, r *http.Request) error {
	nonce, err := randomToken()
	if err != nil {
		return err
	}
	state := statePayload{
		Nonce:       nonce,
		CallbackURL: safeCallbackURL(r.URL.Query().Get("callbackUrl")),
	}
	token, err := p.states.encode(state, p.now().Add(stateMaxAge))
	if err != nil {
		return err
	}
	setCookie(w, r, stateCookieName, token, int(stateMaxAge.Seconds()))

	conf := p.configFor(r)
	authURL := conf.AuthCodeURL(nonce, oauth2.AccessTypeOnline)
	zap.S().Debugw("redirecting to Google sign-in", "redirect_uri", conf.RedirectURL)
	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// Callback exchanges the authorization code, fetches the user profile and
// sets the session cookie before redirecting to the remembered callback URL.
func (p *GoogleProvider) Callback(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		deleteCookie(w, r, stateCookieName)
		return errors.Newf("google sign-in refused: %s", e)
	}

	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return errors.Wrap(ErrStateMismatch, "state cookie missing")
	}
	var state statePayload
	if _, err := p.states.decode(c.Value, &state); err != nil {
		return errors.Wrap(ErrStateMismatch, err.Error())
	}
	if q.Get("state") == "" || q.Get("state") != state.Nonce {
		return ErrStateMismatch
	}
	deleteCookie(w, r, stateCookieName)

	code := q.Get("code")
	if code == "" {
		return errors.New("authorization code missing")
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, p.httpClient)
	tok, err := p.configFor(r).Exchange(ctx, code)
	if err != nil {
		return errors.Wrap(err, "failed to exchange authorization code")
	}

	user, err := p.fetchUser(ctx, tok)
	if err != nil {
		return err
	}

	expires := p.now().Add(p.sessionMaxAge)
	value, err := p.sessions.encode(user, expires)
	if err != nil {
		return err
	}
	setCookie(w, r, sessionCookieName, value, int(p.sessionMaxAge.Seconds()))

	zap.S().Infow("user signed in", "user_id", user.ID, "email", user.Email)
	http.Redirect(w, r, state.CallbackURL, http.StatusFound)
	return nil
}

// SignOut clears the session cookie.
func (p *GoogleProvider) SignOut(w http.ResponseWriter, r *http.Request) {
	deleteCookie(w, r, sessionCookieName)
}

// Session decodes the session cookie of r.
func (p *GoogleProvider) Session(r *http.Request) (*types.Session, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	var user types.User
	expires, err := p.sessions.decode(c.Value, &user)
	if err != nil {
		return nil, errors.Wrap(ErrNoSession, err.Error())
	}
	return &types.Session{User: &user, Expires: expires.UTC()}, nil
}

func (p *GoogleProvider) configFor(r *http.Request) *oauth2.Config {
	origin := p.baseURL
	if p.trustHost || origin == "" {
		origin = requestOrigin(r)
	}
	conf := p.oauth
	conf.RedirectURL = origin + callbackPath
	return &conf
}

func (p *GoogleProvider) fetchUser(ctx context.Context, tok *oauth2.Token) (*types.User, error) {
	client := p.oauth.Client(ctx, tok)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch user info")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read user info")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("user info endpoint answered %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.Wrap(err, "failed to decode user info")
	}
	return &types.User{
		ID:    info.Sub,
		Name:  info.Name,
		Email: info.Email,
		Image: info.Picture,
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate random token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
