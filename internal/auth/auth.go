// Package auth resolves bearer tokens presented by connecting clients to a
// stable user identity. Anonymous play is allowed unless tokens are required.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrTokenRequired = errors.New("token required")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
)

// Identity is the authenticated user behind a connection. The zero value is
// an anonymous player.
type Identity struct {
	UserID      string
	DisplayName string
}

// Anonymous reports whether no user was authenticated.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// Config configures a Verifier.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Required bool
	Now      func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Verifier checks HS256 tokens.
type Verifier struct {
	cfg Config
}

// NewVerifier builds a Verifier.
//
// Precondition: Secret must be non-empty when Required is true.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Required && len(cfg.Secret) == 0 {
		return nil, errors.New("auth: secret is required when tokens are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}, nil
}

// Enabled reports whether tokens are checked at all.
func (v *Verifier) Enabled() bool {
	return len(v.cfg.Secret) > 0
}

// Required reports whether anonymous connections are refused.
func (v *Verifier) Required() bool {
	return v.cfg.Required
}

// Identify resolves token to an Identity.
//
// Postcondition: an empty token yields the anonymous identity unless tokens
// are required; a non-empty token is always verified when a secret is set.
func (v *Verifier) Identify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if v.cfg.Required {
			return Identity{}, ErrTokenRequired
		}
		return Identity{}, nil
	}
	if !v.Enabled() {
		return Identity{}, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}
	if parsed.Subject == "" {
		return Identity{}, fmt.Errorf("%w: subject is required", ErrTokenInvalid)
	}
	return Identity{UserID: parsed.Subject, DisplayName: parsed.Name}, nil
}

// Issue signs a token for id valid for ttl. It is used by operators and
// tests to mint tokens the Verifier accepts.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("auth: no secret configured")
	}
	now := v.cfg.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: id.DisplayName,
	}
	if v.cfg.Audience != "" {
		c.Audience = jwt.ClaimStrings{v.cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
