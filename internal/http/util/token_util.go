package util

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("redirect secret is not configured")
)

// continueAudience keeps continue tokens from being accepted anywhere else.
const continueAudience = "linkpulse:continue"

// TokenSigner issues the short-lived tokens behind the "continue" button of
// the warning page. A token is bound to one slug.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner returns a signer producing HS256 tokens valid for ttl.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Issue mints a token for slug.
func (s *TokenSigner) Issue(slug string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   slug,
		Audience:  jwt.ClaimStrings{continueAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate checks that token was issued by this signer for slug and has not expired.
func (s *TokenSigner) Validate(slug, token string) error {
	if len(s.secret) == 0 {
		return ErrMissingSecret
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(continueAudience),
		jwt.WithSubject(slug),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ErrInvalidToken
	}
	return nil
}
