package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidToken is returned for malformed or tampered signed values.
	ErrInvalidToken = errors.New("invalid signed token")
	// ErrExpiredToken is returned for signed values past their expiry.
	ErrExpiredToken = errors.New("signed token expired")
)

// codec signs and verifies JSON payloads as "payload.signature", both
// base64url encoded. Each purpose gets its own key derived from the secret,
// so a state token can never be replayed as a session.
type codec struct {
	key []byte
	now func() time.Time
}

func newCodec(secret, purpose string, now func() time.Time) (*codec, error) {
	if secret == "" {
		return nil, errors.New("auth secret must not be empty")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("link-preview "+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, "failed to derive signing key")
	}
	return &codec{key: key, now: now}, nil
}

type envelope struct {
	Expires int64           `json:"exp"`
	Data    json.RawMessage `json:"data"`
}

func (c *codec) encode(v interface{}, expires time.Time) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal payload")
	}
	raw, err := json.Marshal(envelope{Expires: expires.Unix(), Data: data})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal envelope")
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.sign(payload), nil
}

func (c *codec) decode(token string, v interface{}) (time.Time, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return time.Time{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(payload))) {
		return time.Time{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidToken, err.Error())
	}

	expires := time.Unix(env.Expires, 0)
	if !c.now().Before(expires) {
		return time.Time{}, ErrExpiredToken
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return expires, nil
}

func (c *codec) sign(payload string) string {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
