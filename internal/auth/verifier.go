package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ensemble/pkg/interfaces"
)

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	ScreenName string `json:"screenName,omitempty"`
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a token verifier for the given signing secret. An
// empty issuer disables issuer checking.
func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, now: time.Now}
}

// Verify parses and validates a bearer token, returning its claims or one
// of the typed token errors.
func (v *Verifier) Verify(token string) (*interfaces.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, interfaces.ErrTokenMalformed
	}

	var parsed tokenClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, mapJWTError(err)
	}

	return &interfaces.Claims{
		Subject:    parsed.Subject,
		ScreenName: parsed.ScreenName,
	}, nil
}

// mapJWTError collapses library errors into the typed outcomes callers
// switch on.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return interfaces.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return interfaces.ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", interfaces.ErrTokenInvalid, err)
	}
}
