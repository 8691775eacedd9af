package common

const (
	// SessionCookieName is the cookie that carries the session JWT.
	SessionCookieName = "jwt"

	// APIKeyHeaderName is the request header used by integration callers.
	APIKeyHeaderName = "x-api-key"
)
