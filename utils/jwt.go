package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "fastzap-chat"

var errInvalidToken = errors.New("invalid token")

// authClaims is the session credential payload: the user reference plus
// the standard expiry/issuer set.
type authClaims struct {
	UserID   int    `json:"uid"`
	Username string `json:"uname"`
	jwt.RegisteredClaims
}

func GenerateJWT(secret string, userID int, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := authClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT verifies a credential and returns the identity it carries.
// Anything malformed, expired, unsigned by secret, or missing the user
// reference fails with a single opaque error.
func ParseJWT(secret, tokenStr string) (int, string, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, "", errInvalidToken
	}
	if claims.UserID <= 0 || claims.Username == "" {
		return 0, "", errInvalidToken
	}
	return claims.UserID, claims.Username, nil
}
