package common

import "errors"

// Domain error sentinels. Repositories and services return these (usually
// wrapped with %w) and handlers translate them into HTTP status codes, so
// storage-engine vocabulary never leaks to callers.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicate          = errors.New("resource already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrForbidden          = errors.New("insufficient privileges")
	ErrPolicyViolation    = errors.New("operation violates policy")
	ErrValidation         = errors.New("validation failed")
)

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
