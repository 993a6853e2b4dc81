// Package auth holds the stateless half of the session protocol: password
// hashing and the signed token codec.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed means the value is not a structurally valid token.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature means the token was not signed by this codec.
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Claims are the registered claims carried by every token: sub (decimal
// user id), exp, iat and a random jti.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrMalformed)
	}
	return id, nil
}

// ExpiredAt reports whether the token is past its exp claim at now.
// Tokens without exp never expire.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now)
}

// Codec signs and verifies tokens with one HMAC secret and algorithm.
// Access and refresh tokens must use separate codecs.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock overrides the time source used for iat and exp.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec returns a Codec for algorithm (HS256, HS384 or HS512).
func NewCodec(secret []byte, algorithm string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty token secret")
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	c := &Codec{secret: secret, method: method, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Encode issues a token for userID that expires ttl from now.
func (c *Codec) Encode(userID int64, ttl time.Duration) (string, error) {
	now := c.now()

	token := jwt.NewWithClaims(c.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})

	return token.SignedString(c.secret)
}

// Decode verifies the signature and structure of tokenString. The exp
// claim is not checked here; callers compare it against their own clock.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrMalformed
	}

	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	return claims, nil
}
