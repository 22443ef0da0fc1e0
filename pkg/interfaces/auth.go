package interfaces

// Claims are the decoded fields of a verified bearer token.
type Claims struct {
	Subject    string
	ScreenName string
}

// TokenVerifier validates a bearer token and returns its claims, or one of
// ErrTokenExpired, ErrTokenInvalid, ErrTokenMalformed.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}
