package auth

import "errors"

var (
	ErrNoSecret           = errors.New("no signing secret configured")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenSigningFailed = errors.New("token signing failed")
)
