package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrBadToken = errors.New("invalid token")

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// MakeToken signs an HS256 access token for uid valid for ttl.
func MakeToken(uid uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		UserID: uid.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}
	return c, nil
}

// UserID parses the token and returns the uid claim as a UUID.
func UserID(raw, secret string) (uuid.UUID, error) {
	c, err := ParseToken(raw, secret)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, ErrBadToken
	}
	return id, nil
}
