// Package hmacauth issues and verifies the signed cookie that ties a browser
// to its server-side ATM session.
package hmacauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CookieName is the session cookie. Its value is "<id>.<unix issued>.<hex mac>".
const CookieName = "atm_session"

var (
	ErrMissingSession = errors.New("missing session cookie")
	ErrStaleSession   = errors.New("stale session cookie")
	ErrInvalidSession = errors.New("invalid session cookie")
)

type Verifier struct {
	Secret string
	MaxAge time.Duration
	Now    func() time.Time
	// Secure marks issued cookies HTTPS-only.
	Secure bool
}

type ctxKey struct{}

// SessionID returns the session bound to ctx by Middleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware resolves the session of every request. A missing or invalid
// cookie starts a fresh session rather than failing the request.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.Verify(r)
		if err != nil {
			id = uuid.NewString()
			http.SetCookie(w, v.Issue(id))
		}
		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// Issue signs id into a fresh cookie.
func (v *Verifier) Issue(id string) *http.Cookie {
	ts := strconv.FormatInt(v.now().Unix(), 10)
	c := &http.Cookie{
		Name:     CookieName,
		Value:    id + "." + ts + "." + computeSignature(v.Secret, ts, []byte(id)),
		Path:     "/",
		HttpOnly: true,
		Secure:   v.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if v.MaxAge > 0 {
		c.MaxAge = int(v.MaxAge / time.Second)
	}
	return c
}

// Verify returns the session id carried by the request cookie.
func (v *Verifier) Verify(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", ErrMissingSession
	}

	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 {
		return "", ErrInvalidSession
	}
	id, tsPart, sig := parts[0], parts[1], parts[2]
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidSession
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return "", ErrInvalidSession
	}

	expected := computeSignature(v.Secret, tsPart, []byte(id))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return "", ErrInvalidSession
	}

	if v.MaxAge > 0 && v.now().Sub(time.Unix(ts, 0)) > v.MaxAge {
		return "", ErrStaleSession
	}
	return id, nil
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func computeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return strings.ToLower(hex.EncodeToString(mac.Sum(nil)))
}
