// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/luxfi/ids"
)

const bearerPrefix = "Bearer "

var (
	ErrNoSecret           = errors.New("auth secret is empty")
	ErrUnexpectedMethod   = errors.New("unexpected signing method")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("call requires an authenticated caller")
	errMalformedAuthValue = errors.New("malformed authorization header")
)

type callerKey struct{}

// Auth issues and checks HS256 bearer tokens. A token's subject is the
// address the holder acts as.
type Auth struct {
	secret []byte
}

func NewAuth(secret []byte) (*Auth, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &Auth{secret: secret}, nil
}

// NewToken returns a token for addr that expires ttl after now.
func (a *Auth) NewToken(addr ids.ShortID, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   addr.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies token and returns the address it was issued for.
func (a *Auth) Parse(token string) (ids.ShortID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedMethod, t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	addr, err := ids.ShortFromString(claims.Subject)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	return addr, nil
}

// Middleware attaches the caller named by the request's bearer token to the
// request context. Requests without a token pass through anonymously; a bad
// token is rejected.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			http.Error(w, errMalformedAuthValue.Error(), http.StatusUnauthorized)
			return
		}
		caller, err := a.Parse(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func WithCaller(ctx context.Context, caller ids.ShortID) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the authenticated caller of the request.
func Caller(r *http.Request) (ids.ShortID, error) {
	caller, ok := r.Context().Value(callerKey{}).(ids.ShortID)
	if !ok {
		return ids.ShortEmpty, ErrUnauthenticated
	}
	return caller, nil
}
