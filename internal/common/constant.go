package common

// Cookie and metadata names carrying the two tokens. The same names are used
// for HTTP cookies and for gRPC metadata keys.
const (
	AccessTokenCookieName  = "access_token"
	RefreshTokenCookieName = "refresh_token"
)
