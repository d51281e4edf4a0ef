package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// BasicConfig holds configuration for Basic authentication.
type BasicConfig struct {
	Header   string `mapstructure:"header"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Acquire returns a Basic auth header value constructed from Username and Password.
func (c BasicConfig) Acquire(_ context.Context) (string, string, error) {
	u := strings.TrimSpace(c.Username)
	p := strings.TrimSpace(c.Password)
	if u == "" || p == "" {
		return "", "", errors.New("basic: username and password are required")
	}
	cred := base64.StdEncoding.EncodeToString([]byte(u + ":" + p))
	return headerOrDefault(c.Header), "Basic " + cred, nil
}

// BearerConfig injects a static token.
type BearerConfig struct {
	Header string `mapstructure:"header"`
	Token  string `mapstructure:"token"`
}

func (c BearerConfig) Acquire(_ context.Context) (string, string, error) {
	t := strings.TrimSpace(c.Token)
	if t == "" {
		return "", "", errors.New("bearer: token is required")
	}
	return headerOrDefault(c.Header), "Bearer " + t, nil
}
