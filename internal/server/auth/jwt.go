// Package auth mints and verifies the short-lived access tokens that carry
// the user id between requests.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the user id under "id".
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

// Issuer signs access tokens with HS256. The key is fixed for the life of the
// process; rotating it invalidates every outstanding token.
type Issuer struct {
	secretKey []byte
	validity  time.Duration
	now       func() time.Time
}

func NewIssuer(secretKey []byte, validity time.Duration) *Issuer {
	return &Issuer{secretKey: secretKey, validity: validity, now: time.Now}
}

// Issue returns a signed token for userID expiring after the issuer's validity.
func (i *Issuer) Issue(userID string) (string, error) {
	return GenerateToken(userID, i.secretKey, i.validity, i.now())
}

// Verify returns the user id carried by tokenString. Any signature, algorithm
// or expiry problem yields common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (string, error) {
	return GetUserIDFromToken(tokenString, i.secretKey, i.now())
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func GetUserIDFromToken(tokenString string, secretKey []byte, now time.Time) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", errors.Join(common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
