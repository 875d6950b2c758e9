package store

import "errors"

var (
	ErrInvalidRole          = errors.New("role must be 'teacher' or 'student'")
	ErrInvalidStatus        = errors.New("status must be 'present' or 'absent'")
	ErrNotATeacher          = errors.New("user is not a teacher")
	ErrNotAStudent          = errors.New("user is not a student")
	ErrAuthenticationFailed = errors.New("invalid email or password")
)
