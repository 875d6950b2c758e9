package interfaces

import "errors"

// Store errors shared across implementations and consumers.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrClassNotFound = errors.New("class not found")
	ErrEmailTaken    = errors.New("email already registered")
)
