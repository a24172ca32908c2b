package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for malformed or badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for well-formed tokens past their expiry.
	ErrExpiredToken = errors.New("expired token")
)

const tokenIssuer = "livia"

// Claims is the payload of a session access token.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the subject as a UUID.
func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IssueToken signs a new access token for userID valid until now+ttl.
func IssueToken(secret []byte, userID uuid.UUID, now time.Time, ttl time.Duration) (token string, claims Claims, err error) {
	claims = Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("signing token: %w", err)
	}
	return token, claims, nil
}

// ParseToken validates signature, issuer and expiry and returns the claims.
func ParseToken(secret []byte, raw string, now time.Time) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if claims.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
