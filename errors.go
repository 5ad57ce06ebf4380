package tokenfan

import "github.com/jpalmerr/tokenfan/internal/server"

// Errors returned by [Shim.Like]. The HTTP surface maps the first four to
// 400, ErrRateLimited to 429 and ErrNoCredentials to 500.
var (
	ErrMissingSubject = server.ErrMissingSubject
	ErrMissingTarget  = server.ErrMissingTarget
	ErrInvalidSubject = server.ErrInvalidSubject
	ErrUnknownTarget  = server.ErrUnknownTarget
	ErrNoCredentials  = server.ErrNoCredentials
	ErrRateLimited    = server.ErrRateLimited
)
