package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig signs an HS256 token locally for parsers that share a secret
// with their callers.
type JWTConfig struct {
	Header string `mapstructure:"header"`
	// Secret is the HMAC secret key used for HS256 signing (required)
	Secret string `mapstructure:"secret"`
	// TTLSeconds controls expiration. Default 5 minutes.
	TTLSeconds int64 `mapstructure:"ttl_seconds"`

	Subject  string   `mapstructure:"sub"`
	Issuer   string   `mapstructure:"iss"`
	Audience []string `mapstructure:"aud"`

	// Custom claims embedded as-is.
	Custom map[string]any `mapstructure:"custom"`
}

// Issue creates a signed JWT token string.
func (c JWTConfig) Issue(now time.Time) (string, error) {
	if len(c.Secret) == 0 {
		return "", errors.New("jwt: secret required")
	}
	ttl := c.TTLSeconds
	if ttl <= 0 {
		ttl = 300
	}
	claims := jwt.MapClaims{}
	for k, v := range c.Custom {
		claims[k] = v
	}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = c.Audience
	}
	claims["iat"] = now.Unix()
	claims["exp"] = now.Unix() + ttl

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(c.Secret))
}

func (c JWTConfig) Acquire(_ context.Context) (string, string, error) {
	tok, err := c.Issue(time.Now())
	if err != nil {
		return "", "", err
	}
	return headerOrDefault(c.Header), "Bearer " + tok, nil
}
