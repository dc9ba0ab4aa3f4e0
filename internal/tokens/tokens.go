package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/restausimplon/api/internal/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the caller identity. Subject is the user email; Type
// distinguishes access tokens from refresh tokens.
type Claims struct {
	Role models.Role `json:"role"`
	Type string      `json:"type"`
	jwt.RegisteredClaims
}

func SignAccess(email string, role models.Role, secret []byte, ttl time.Duration) (string, error) {
	return sign(email, role, TypeAccess, secret, ttl)
}

func SignRefresh(email string, role models.Role, secret []byte, ttl time.Duration) (string, error) {
	return sign(email, role, TypeRefresh, secret, ttl)
}

func sign(email string, role models.Role, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse validates signature and expiry and returns the typed claims.
func Parse(tokenStr string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
