// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/medlink/internal/config"
)

// minSecretLength is the shortest HMAC secret accepted.
const minSecretLength = 32

// ScopeRealtime is the only scope the relay issues.
const ScopeRealtime = "realtime"

// ErrInvalidToken is returned for every token that fails validation.
var ErrInvalidToken = errors.New("invalid connection token")

// Claims are the claims carried by a connection token.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates connection tokens.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTManager creates a token manager from the relay configuration.
//
// Security Requirements:
//   - JWT_SECRET must be at least 32 characters
//   - Tokens are signed with HS256 and validated against the configured issuer
//
// Example:
//
//	jwtManager, err := auth.NewJWTManager(&cfg.Relay)
//	if err != nil {
//	    return fmt.Errorf("relay auth: %w", err)
//	}
func NewJWTManager(cfg *config.RelayConfig) (*JWTManager, error) {
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive, got %s", cfg.TokenTTL)
	}

	return &JWTManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// TTL returns the validity of issued tokens.
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// GenerateToken issues a realtime connection token for subject.
//
// Token Claims:
//   - sub: the session subject the token was issued to
//   - iss: the configured issuer
//   - scope: "realtime"
//   - exp / iat / nbf: issue time plus the configured TTL
func (m *JWTManager) GenerateToken(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}

	now := m.now()
	claims := &Claims{
		Scope: ScopeRealtime,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm, issuer, expiry and scope.
// All failures wrap ErrInvalidToken.
//
//	claims, err := jwtManager.ValidateToken(r.URL.Query().Get("token"))
//	if errors.Is(err, auth.ErrInvalidToken) {
//	    // reject the upgrade
//	}
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	if claims.Scope != ScopeRealtime {
		return nil, fmt.Errorf("%w: unexpected scope %q", ErrInvalidToken, claims.Scope)
	}
	return claims, nil
}
