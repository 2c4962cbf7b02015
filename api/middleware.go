package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/config"
)

const sessionIssuer = "dispatch-board"

// Sessions issues anonymous session tokens and guards write routes with them.
// Tokens are HS256 JWTs; verified tokens are cached by the bearer strategy
// until they expire.
type Sessions struct {
	secret        []byte
	ttl           time.Duration
	authenticator auth.Authenticator
	now           func() time.Time
}

// NewSessions sets up go-guardian with a cached bearer strategy
func NewSessions(ctx context.Context, secret string, ttl time.Duration) *Sessions {
	s := &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	cache := store.NewFIFO(ctx, ttl)
	s.authenticator = auth.New()
	s.authenticator.EnableStrategy(bearer.CachedStrategyKey, bearer.New(s.verify, cache))
	return s
}

// verify is called for tokens missing from the cache
func (s *Sessions) verify(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	return auth.NewDefaultUser(claims.Subject, claims.ID, nil, nil), nil
}

// Issue signs a new anonymous session token
func (s *Sessions) Issue(r *http.Request) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	subject := "anon-" + uuid.New().String()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   subject,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	tokenStrategy := s.authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Append(tokenStrategy, token, auth.NewDefaultUser(subject, claims.ID, nil, nil), r)
	return token, expires, nil
}

// AnonymousSessionHandler opens an anonymous session
func (s *Sessions) AnonymousSessionHandler(w http.ResponseWriter, r *http.Request) {
	token, expires, err := s.Issue(r)
	if err != nil {
		config.ErrorStatus("failed to issue session token", http.StatusInternalServerError, w, err)
		return
	}
	b, err := json.Marshal(map[string]interface{}{
		"token":     token,
		"expiresAt": expires.UTC(),
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// Middleware rejects requests without a valid session token
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := s.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL,
				"requestId", RequestID(r.Context()))
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errors.New("a valid session token is required"))
			return
		}
		zap.S().Debugw("session authenticated", "user", user.UserName())
		next.ServeHTTP(w, r)
	})
}
