package testutil

import (
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// TestSigningKey signs tokens built by TokenBuilder.
var TestSigningKey = []byte("mmk-console-test-key")

// TokenBuilder provides a fluent interface for building signed bearer tokens for testing.
type TokenBuilder struct {
	claims jwt.MapClaims
}

// NewToken creates a TokenBuilder for subject "1" with no expiry.
func NewToken() *TokenBuilder {
	return &TokenBuilder{claims: jwt.MapClaims{"sub": "1"}}
}

// WithSubject sets the sub claim.
func (b *TokenBuilder) WithSubject(sub string) *TokenBuilder {
	b.claims["sub"] = sub
	return b
}

// ExpiresAt sets the exp claim.
func (b *TokenBuilder) ExpiresAt(t time.Time) *TokenBuilder {
	b.claims["exp"] = jwt.NewNumericDate(t)
	return b
}

// ExpiresIn sets exp relative to now.
func (b *TokenBuilder) ExpiresIn(d time.Duration) *TokenBuilder {
	return b.ExpiresAt(time.Now().Add(d))
}

// WithClaim sets an arbitrary claim.
func (b *TokenBuilder) WithClaim(key string, value any) *TokenBuilder {
	b.claims[key] = value
	return b
}

// Build signs the token with TestSigningKey using HS256.
func (b *TokenBuilder) Build(t TestingTB) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, b.claims).SignedString(TestSigningKey)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return s
}

// RawToken assembles header.payload.signature from a literal JSON payload.
// Useful for payloads the jwt library would refuse to produce.
func RawToken(payloadJSON string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(payloadJSON)) + "." +
		enc.EncodeToString([]byte("sig"))
}

// NewIdentity returns the identity used by the session scenarios.
func NewIdentity() domainauth.Identity {
	return domainauth.Identity{
		ID:        "1",
		Name:      "A",
		Email:     "a@x.com",
		CreatedAt: TestTime(),
	}
}
