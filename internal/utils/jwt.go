package utils // package utils provides helper functions for token creation

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceToken represents a signed HS256 token granted to a backend
// caller of this API (the chat-bot backend, admin tooling).  The
// Token field contains the JWT string; Exp stores the expiration
// timestamp.  Tokens are minted out of band and presented in the
// Authorization header.
type ServiceToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewServiceToken builds and signs an HS256 JWT for a service caller.
// It takes the signing secret, the caller name, the scope granted
// ("operator" can drive reservations, "admin" is a superset) and a
// TTL.  The JWT carries standard claims: subject (sub), scope,
// expiration (exp) and issued at (iat).
func NewServiceToken(secret, service, scope string, ttl time.Duration) (ServiceToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   service,
		"scope": scope,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return ServiceToken{}, err
	}
	return ServiceToken{Token: signed, Exp: exp}, nil
}
