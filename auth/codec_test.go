package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/cnosuke/link-preview/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestCodec_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c, err := newCodec("s3cret", "session", clock.Now)
	require.NoError(t, err)

	user := &types.User{ID: "42", Name: "Ada", Email: "ada@example.com"}
	token, err := c.encode(user, clock.t.Add(time.Hour))
	require.NoError(t, err)

	var got types.User
	expires, err := c.decode(token, &got)
	require.NoError(t, err)
	assert.Equal(t, *user, got)
	assert.Equal(t, clock.t.Add(time.Hour).Unix(), expires.Unix())
}

func TestCodec_RejectsTampering(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c, err := newCodec("s3cret", "session", clock.Now)
	require.NoError(t, err)

	token, err := c.encode(&types.User{ID: "42"}, clock.t.Add(time.Hour))
	require.NoError(t, err)
	payload, sig, _ := strings.Cut(token, ".")

	forged, err := c.encode(&types.User{ID: "1"}, clock.t.Add(time.Hour))
	require.NoError(t, err)
	forgedPayload, _, _ := strings.Cut(forged, ".")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no signature", token: payload},
		{name: "wrong signature", token: payload + "." + flipFirst(sig)},
		{name: "swapped payload", token: forgedPayload + "." + sig},
		{name: "garbage", token: "not.base64!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u types.User
			_, err := c.decode(tt.token, &u)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

func flipFirst(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

func TestCodec_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c, err := newCodec("s3cret", "session", clock.Now)
	require.NoError(t, err)

	token, err := c.encode(&types.User{ID: "42"}, clock.t.Add(time.Minute))
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	var u types.User
	_, err = c.decode(token, &u)
	assert.True(t, errors.Is(err, ErrExpiredToken))
}

func TestCodec_PurposesDoNotMix(t *testing.T) {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	states, err := newCodec("s3cret", "oauth state", now)
	require.NoError(t, err)
	sessions, err := newCodec("s3cret", "session", now)
	require.NoError(t, err)

	token, err := states.encode(statePayload{Nonce: "n"}, now().Add(time.Hour))
	require.NoError(t, err)

	var u types.User
	_, err = sessions.decode(token, &u)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := newCodec("", "session", time.Now)
	assert.Error(t, err)
}

func TestSafeCallbackURL(t *testing.T) {
	assert.Equal(t, "/", safeCallbackURL(""))
	assert.Equal(t, "/dashboard?tab=1", safeCallbackURL("/dashboard?tab=1"))
	assert.Equal(t, "/", safeCallbackURL("https://evil.example.com"))
	assert.Equal(t, "/", safeCallbackURL("//evil.example.com"))
	assert.Equal(t, "/", safeCallbackURL(`/\evil.example.com`))
}
