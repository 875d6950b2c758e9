package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

// DefaultTokenTTL is how long minted credentials stay valid unless the
// caller asks for a different lifetime.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims represents the identity claims transmitted via a signed JWT.
// The user id travels in the standard Subject claim; role and display
// name are custom claims.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Verifier validates and mints bearer credentials against the single
// process-wide signing secret. An empty secret is a server
// misconfiguration reported per call, so every connection attempt
// fails with a distinguishing error rather than the process refusing
// to start.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret. The
// secret may be empty; Verify and Mint then fail with ErrNoSecret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string, returning the identity
// it carries. Signature, expiry and signing method are all enforced.
func (v *Verifier) Verify(tokenString string) (*types.Identity, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || !types.IsValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}

	return &types.Identity{
		UserID: claims.Subject,
		Role:   claims.Role,
		Name:   claims.Name,
	}, nil
}

// Mint generates a signed token string for the given identity, valid
// for ttl (DefaultTokenTTL if ttl <= 0).
func (v *Verifier) Mint(identity types.Identity, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Role: identity.Role,
		Name: identity.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", ErrTokenSigningFailed
	}
	return signed, nil
}
