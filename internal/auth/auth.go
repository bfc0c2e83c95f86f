package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrBadToken = errors.New("invalid token")

// DefaultTTL is the lifetime of tokens minted by MakeToken callers that do not
// pick their own.
const DefaultTTL = time.Hour

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// MakeToken signs an HS256 access token for uid.
func MakeToken(uid uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		UserID: uid.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// ParseToken validates raw and returns the user id it was issued for.
func ParseToken(raw, secret string) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, errors.Join(ErrBadToken, err)
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return uuid.Nil, ErrBadToken
	}

	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, ErrBadToken
	}
	return id, nil
}
