package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256TokenVerifier returns a VerifyFunc that validates tokens signed with
// the shared secret the billing portal uses to mint customer tokens.
func HS256TokenVerifier(secret []byte) VerifyFunc {
	if len(secret) == 0 {
		panic("auth.HS256TokenVerifier: secret must not be empty")
	}

	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, err
		}
		if !parsed.Valid {
			return nil, errors.New("invalid token")
		}
		return claims, nil
	}
}

// MintToken signs a customer or admin token with the shared secret. Used by
// tests and the local development tooling.
func MintToken(secret []byte, subject, email string, isAdmin bool, tenantCode string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     subject,
		"email":   email,
		"isAdmin": isAdmin,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	if tenantCode != "" {
		claims["tenant"] = tenantCode
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
