// Package jwtcodec decodes the self-describing claims of a bearer token.
// No signature verification is performed; the identity round trip is the
// authoritative validity check.
package jwtcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

var _ ports.TokenCodec = (*Codec)(nil)

// maxExpSeconds caps exp when it is converted to a time.Time; larger values
// would overflow the conversion and are far enough out to mean "never".
const maxExpSeconds = 1 << 40

// Option customizes a Codec.
type Option func(*Codec)

// WithClock injects the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec implements ports.TokenCodec for JWT-shaped tokens.
type Codec struct {
	parser *jwt.Parser
	now    func() time.Time
}

// New constructs a Codec. Base64url segments are accepted with or without padding.
func New(opts ...Option) *Codec {
	c := &Codec{
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode splits the token, decodes the payload segment, and reads its registered claims.
// Any failure is returned as a token_decode AppError.
func (c *Codec) Decode(token string) (domainauth.Claims, error) {
	mc, err := c.payload(token)
	if err != nil {
		return domainauth.Claims{}, err
	}
	return claimsFrom(mc)
}

func (c *Codec) payload(token string) (jwt.MapClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, apperrors.Decode(
			fmt.Errorf("%w: expected 3 segments, got %d", jwt.ErrTokenMalformed, len(parts)))
	}

	raw, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, apperrors.Decode(fmt.Errorf("%w: payload: %w", jwt.ErrTokenMalformed, err))
	}

	var mc jwt.MapClaims
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err = dec.Decode(&mc); err != nil {
		return nil, apperrors.Decode(fmt.Errorf("%w: payload json: %w", jwt.ErrTokenMalformed, err))
	}
	return mc, nil
}

// expSeconds reads exp as fractional seconds. MapClaims.GetExpirationTime
// truncates to whole seconds, which would shift the boundary.
func expSeconds(mc jwt.MapClaims) (float64, bool, error) {
	v, ok := mc["exp"]
	if !ok {
		return 0, false, nil
	}
	var exp float64
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, apperrors.Decode(fmt.Errorf("%w: exp: %w", jwt.ErrInvalidType, err))
		}
		exp = f
	case float64:
		exp = n
	default:
		return 0, false, apperrors.Decode(fmt.Errorf("%w: exp is %T", jwt.ErrInvalidType, v))
	}
	if math.IsNaN(exp) {
		return 0, false, apperrors.Decode(fmt.Errorf("%w: exp is NaN", jwt.ErrInvalidType))
	}
	return exp, true, nil
}

func secondsToTime(sec float64) time.Time {
	sec = math.Max(math.Min(sec, maxExpSeconds), -maxExpSeconds)
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

func claimsFrom(mc jwt.MapClaims) (domainauth.Claims, error) {
	var out domainauth.Claims

	exp, ok, err := expSeconds(mc)
	if err != nil {
		return out, err
	}
	if ok {
		t := secondsToTime(exp)
		out.ExpiresAt = &t
	}

	iat, err := mc.GetIssuedAt()
	if err != nil {
		return out, apperrors.Decode(err)
	}
	if iat != nil {
		t := iat.Time
		out.IssuedAt = &t
	}

	sub, err := mc.GetSubject()
	if err != nil {
		return out, apperrors.Decode(err)
	}
	out.Subject = sub

	return out, nil
}

// IsExpired reports whether the token must be treated as expired: exp*1000 < now in
// milliseconds. Undecodable tokens and tokens without exp are expired (fail closed).
func (c *Codec) IsExpired(token string) bool {
	mc, err := c.payload(token)
	if err != nil {
		return true
	}
	if _, err = claimsFrom(mc); err != nil {
		return true
	}
	exp, ok, err := expSeconds(mc)
	if err != nil || !ok {
		return true
	}
	return exp*1000 < float64(c.now().UnixMilli())
}

// ExpiresAt returns the token's expiry when it can be decoded and carries exp.
func (c *Codec) ExpiresAt(token string) (time.Time, bool) {
	claims, err := c.Decode(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *claims.ExpiresAt, true
}
