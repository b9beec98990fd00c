// Package auth provides session-cookie authentication for the voice
// endpoint. Credentials are checked against a single configured admin
// account; valid logins get an opaque token in an HttpOnly cookie.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"time"
)

// CookieName is the session cookie carrying the token
const CookieName = "session_token"

// ErrInvalidCredentials is returned by Login on a bad username or password
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service validates credentials and manages session tokens
type Service struct {
	store    Store
	username string
	password string
	ttl      time.Duration
}

// NewService builds the auth service. An empty password disables login
// entirely (every attempt fails), it never means "no password required".
func NewService(store Store, username, password string, ttl time.Duration) *Service {
	return &Service{store: store, username: username, password: password, ttl: ttl}
}

// Login validates credentials and returns a new session token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := s.password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	if err := s.store.Put(ctx, token, s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Logout revokes a session token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Revoke(ctx, token)
}

// Validate reports whether a token names a live session
func (s *Service) Validate(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ok, err := s.store.Valid(ctx, token)
	if err != nil {
		log.Printf("auth: token lookup failed: %v", err)
		return false
	}
	return ok
}

// TTL returns the configured session token lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Middleware rejects requests without a valid session cookie. The relay
// behind it always sees an already-authenticated connection.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || !s.Validate(r.Context(), cookie.Value) {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
