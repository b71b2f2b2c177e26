// Package authtest issues signed session tokens for tests.
package authtest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/mealplan/internal/auth"
)

const Issuer = "https://clerk.test"

// TokenIssuer signs tokens with a throwaway RSA key.
type TokenIssuer struct {
	t   testing.TB
	key *rsa.PrivateKey
}

func NewIssuer(t testing.TB) *TokenIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &TokenIssuer{t: t, key: key}
}

// Verifier returns a verifier that trusts this issuer's key.
func (i *TokenIssuer) Verifier() *auth.Verifier {
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&i.key.PublicKey}}
	return auth.NewVerifierWithKeySet(Issuer, "", keys)
}

// Token returns a session token for the user valid for an hour.
func (i *TokenIssuer) Token(u auth.User) string {
	return i.Sign(jwt.MapClaims{
		"iss":   Issuer,
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

// Sign signs arbitrary claims.
func (i *TokenIssuer) Sign(claims jwt.MapClaims) string {
	i.t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		i.t.Fatalf("sign token: %v", err)
	}
	return s
}
