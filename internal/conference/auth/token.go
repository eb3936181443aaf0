// Package auth decodes the signed token carried on the WebSocket query
// string and extracts the caller's role. Any failure — bad signature,
// malformed token, missing field, even an empty token — maps to role user;
// this core never rejects a connection over authentication (spec §6).
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is one of the two fixed roles a Peer Session can hold.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Claims is the payload this core expects; only Role is load-bearing.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Decoder extracts a Role from a signed token string.
type Decoder struct {
	secret []byte
}

// NewDecoder builds a Decoder bound to one HMAC secret.
func NewDecoder(secret string) *Decoder {
	return &Decoder{secret: []byte(secret)}
}

// RoleOf decodes token and returns the claimed role. Any error in parsing,
// signature verification, or a missing/unrecognized role field resolves to
// RoleUser rather than propagating an error, matching
// original_source/server.py's authenticate() fallback.
func (d *Decoder) RoleOf(token string) Role {
	if token == "" {
		return RoleUser
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return d.secret, nil
	})
	if err != nil || !parsed.Valid {
		return RoleUser
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return RoleUser
	}
	switch Role(claims.Role) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Generate mints a token for the given role, used by dev tooling and tests
// to produce a credential the Decoder above will accept.
func (d *Decoder) Generate(role Role, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}
