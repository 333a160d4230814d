package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func sessionToken(t *testing.T, now time.Time, edit func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("toko-checkout").
		Audience([]string{"storefront"}).
		Subject("user-1").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute))
	if edit != nil {
		b = edit(b)
	}
	tok, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	return tok
}

func TestTokenValidatorSession(t *testing.T) {
	now := time.Now()
	v := TokenValidator{Issuer: "toko-checkout", Audience: "storefront", ClockSkew: time.Second, Algorithm: jwa.HS256}

	sess, err := v.Session(sessionToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim(emailClaim, "a@b.c")
	}), jwa.HS256, now)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.UserID != "user-1" || sess.Email != "a@b.c" {
		t.Fatalf("unexpected session %#v", sess)
	}
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	v := TokenValidator{Issuer: "toko-checkout", Audience: "storefront", ClockSkew: time.Second, Algorithm: jwa.HS256}

	cases := map[string]struct {
		edit func(*jwt.Builder) *jwt.Builder
		alg  jwa.SignatureAlgorithm
	}{
		"issuer":   {edit: func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") }},
		"audience": {edit: func(b *jwt.Builder) *jwt.Builder { return b.Audience([]string{"admin"}) }},
		"expired": {edit: func(b *jwt.Builder) *jwt.Builder {
			return b.IssuedAt(now.Add(-2 * time.Hour)).NotBefore(now.Add(-2 * time.Hour)).Expiration(now.Add(-time.Minute))
		}},
		"not before": {edit: func(b *jwt.Builder) *jwt.Builder { return b.NotBefore(now.Add(5 * time.Minute)) }},
		"algorithm":  {alg: jwa.RS256},
		"subject":    {edit: func(b *jwt.Builder) *jwt.Builder { return b.Subject(" ") }},
		"email":      {edit: func(b *jwt.Builder) *jwt.Builder { return b.Claim(emailClaim, 42) }},
	}
	for name, tc := range cases {
		alg := tc.alg
		if alg == "" {
			alg = jwa.HS256
		}
		if _, err := v.Session(sessionToken(t, now, tc.edit), alg, now); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
	if _, err := v.Session(nil, jwa.HS256, now); err == nil {
		t.Fatal("nil token: expected rejection")
	}
}
