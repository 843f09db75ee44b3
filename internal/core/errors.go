package core

import "errors"

// Error kinds shared between the gateway, the session machine and the HTTP
// layer. Unknown-user and wrong-password both collapse into
// ErrInvalidCredentials.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrUnavailable        = errors.New("service unreachable")
	ErrInsightUnavailable = errors.New("insight generation failed")
	ErrProfileNotFound    = errors.New("profile not found")
)
