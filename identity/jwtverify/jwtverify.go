// Package jwtverify verifies HMAC signed identity tokens.
package jwtverify

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-village-store/identity"
)

var _ identity.Verifier = (*Verifier)(nil)

// tokenClaims carries the profile claims next to the registered ones.
type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Config configures a Verifier. Empty Issuer and Audience are not checked.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	Now      func() time.Time
}

// Verifier checks HMAC signed tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// New validates cfg and returns a Verifier.
func New(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required", errors.CategoryBadInput)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}

	return &Verifier{secret: cfg.Secret, parser: jwt.NewParser(opts...)}, nil
}

// Verify checks the signature and registered claims of token.
func (v *Verifier) Verify(ctx context.Context, token string) (identity.Claims, error) {
	if err := ctx.Err(); err != nil {
		return identity.Claims{}, err
	}

	var claims tokenClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return identity.Claims{}, authError(err)
	}

	return identity.Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

// Sign issues a token for c valid for ttl. It is used by tools and tests that
// stand in for the identity provider.
func Sign(secret []byte, c identity.Claims, issuer, audience string, now time.Time, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		Email: c.Email,
		Name:  c.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func authError(err error) error {
	code := "TOKEN_INVALID"
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		code = "TOKEN_EXPIRED"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		code = "TOKEN_SIGNATURE_INVALID"
	case errors.Is(err, jwt.ErrTokenMalformed):
		code = "TOKEN_MALFORMED"
	}
	return errors.Wrap(err, errors.CategoryAuth, "identity token rejected").WithTextCode(code)
}
