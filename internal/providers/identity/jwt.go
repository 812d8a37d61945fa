package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryFromJWT reads the exp claim without verifying the signature.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
