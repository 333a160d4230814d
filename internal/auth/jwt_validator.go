package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator turns a parsed, signature-checked token into a Session.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

func (v TokenValidator) options(now time.Time) []jwt.ValidateOption {
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithAcceptableSkew(max(v.ClockSkew, 0)),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return opts
}

// Session checks the token's algorithm and registered claims at now and returns the shopper it
// names. The subject is the user id. An email claim, when present, must be a string address.
func (v TokenValidator) Session(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (Session, error) {
	switch {
	case tok == nil:
		return Session{}, errors.New("auth: token is nil")
	case algorithm == "":
		return Session{}, errors.New("auth: token missing algorithm")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return Session{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	if err := jwt.Validate(tok, v.options(now)...); err != nil {
		return Session{}, err
	}
	sess := Session{UserID: strings.TrimSpace(tok.Subject())}
	if sess.UserID == "" {
		return Session{}, errors.New("auth: token missing subject")
	}
	if raw, ok := tok.Get(emailClaim); ok {
		email, isString := raw.(string)
		if !isString || !strings.Contains(email, "@") {
			return Session{}, errors.New("auth: malformed email claim")
		}
		sess.Email = email
	}
	return sess, nil
}
