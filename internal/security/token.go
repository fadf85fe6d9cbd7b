package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fastcrud/apiserver/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultAlgorithm = "HS512"

// TokenCodec issues and verifies signed, time-bounded identity tokens.
type TokenCodec interface {
	Issue(subject string, extra map[string]string) (string, error)
	Verify(token string) (Claims, error)
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Extra map[string]string `json:"ext,omitempty"`
}

// JWTCodec is an HMAC-signed JWT implementation of TokenCodec.
type JWTCodec struct {
	method   *jwt.SigningMethodHMAC
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// JWTOption customizes a JWTCodec.
type JWTOption func(*JWTCodec)

// WithClock overrides the time source used for issuance and verification.
func WithClock(now func() time.Time) JWTOption {
	return func(c *JWTCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewJWTCodec builds a codec from the auth configuration.
func NewJWTCodec(cfg config.AuthConfig, opts ...JWTOption) (*JWTCodec, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}

	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = defaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.Algorithm)
	}

	codec := &JWTCodec{
		method:   method,
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}
	return codec, nil
}

// Issue signs a token for subject that expires ttl from now.
func (c *JWTCodec) Issue(subject string, extra map[string]string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidInput)
	}

	now := c.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Extra: extra,
	}
	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature, algorithm, issuer, audience and expiry.
// A token whose exp equals the current time is already expired.
func (c *JWTCodec) Verify(tokenString string) (Claims, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrTokenInvalid
	}

	out := Claims{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: []string(claims.Audience),
		ID:       claims.ID,
		Extra:    claims.Extra,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// TTL returns the configured token lifetime.
func (c *JWTCodec) TTL() time.Duration {
	return c.ttl
}
