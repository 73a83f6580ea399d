// ABOUTME: Local verification of technician access tokens issued by the repair backend.
// ABOUTME: Checks the HS256 signature, expiry, subject and token type against the shared secret.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMissingClaim   = errors.New("missing required claim")
	ErrEmptySecret    = errors.New("jwt secret must not be empty")
	ErrWrongTokenType = errors.New("not an access token")
)

// accessTokenType marks tokens the backend accepts on API calls. Refresh
// tokens are signed with the same shape but must never reach a tool.
const accessTokenType = "access"

// TokenVerifier resolves a bearer token to the technician it belongs to.
type TokenVerifier interface {
	Verify(tokenString string) (subject string, err error)
}

// backendClaims mirrors the payload the repair backend signs at login.
type backendClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks tokens against the backend's HS256 secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Verify returns the technician id from the sub claim. A token without a
// type claim is treated as an access token.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	var claims backendClaims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Type != "" && claims.Type != accessTokenType {
		return "", fmt.Errorf("%w: type %q", ErrWrongTokenType, claims.Type)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// Generate signs an access token for technician that expires after ttl,
// in the same shape the backend issues at login.
func (v *JWTVerifier) Generate(technician string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := backendClaims{
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   technician,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
