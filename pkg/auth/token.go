// Package auth verifies the HS256 access tokens issued by the identity service.
// Minting exists for tests and local tooling; production tokens come from
// elsewhere.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// clockSkew tolerates drift between the identity service and this API.
const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// Claims is the access token body.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claims checks. The system role is
// reserved for in-process actors and never arrives on a token.
func (c *Claims) Validate() error {
	switch {
	case c.UserID == uuid.Nil:
		return errors.New("token has no user id")
	case !c.Role.IsValid() || c.Role == enums.ActorRoleSystem:
		return fmt.Errorf("token role %q is not accepted", c.Role)
	}
	return nil
}

// Tokens signs and verifies access tokens for one issuer and secret.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

// Mint signs a token for userID valid from now for the configured TTL.
func (t *Tokens) Mint(now time.Time, userID uuid.UUID, role enums.ActorRole) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := t.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// Mint is a one-shot helper for tests and local tooling.
func Mint(cfg config.JWTConfig, now time.Time, userID uuid.UUID, role enums.ActorRole) (string, error) {
	tokens, err := NewTokens(cfg)
	if err != nil {
		return "", err
	}
	return tokens.Mint(now, userID, role)
}
