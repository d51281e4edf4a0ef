// Package auth supplies the optional credentials attached to the parser
// call. Providers are registered by type and decoded from a loose config map.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultHeader is used when a provider config leaves header empty.
const DefaultHeader = "Authorization"

// Method acquires one header to inject into a request.
type Method interface {
	Acquire(ctx context.Context) (header string, value string, err error)
}

// Factory builds a Method from a loosely-typed spec map.
type Factory func(spec map[string]any) (Method, error)

// Config selects a provider. An empty Type disables authentication.
type Config struct {
	Type   string         `mapstructure:"type" yaml:"type"`
	Config map[string]any `mapstructure:"config" yaml:"config,omitempty"`
}

// Enabled reports whether a provider is configured.
func (c Config) Enabled() bool {
	return normalizeKey(c.Type) != ""
}

var providers = map[string]Factory{}

// normalizeKey lower-cases and trims provider type keys.
func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register registers an auth provider factory under a type key.
func Register(typ string, f Factory) {
	key := normalizeKey(typ)
	if key == "" || f == nil {
		return
	}
	providers[key] = f
}

// HasProvider reports whether typ is registered.
func HasProvider(typ string) bool {
	_, ok := providers[normalizeKey(typ)]
	return ok
}

// Build decodes c into its provider's Method.
func Build(c Config) (Method, error) {
	f, ok := providers[normalizeKey(c.Type)]
	if !ok {
		return nil, errors.New("auth: unsupported provider type: " + c.Type)
	}
	spec := c.Config
	if spec == nil {
		spec = map[string]any{}
	}
	return f(spec)
}

// Acquire builds the provider named by c and acquires its header.
func Acquire(ctx context.Context, c Config) (string, string, error) {
	m, err := Build(c)
	if err != nil {
		return "", "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.Acquire(ctx)
}

func headerOrDefault(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return DefaultHeader
	}
	return h
}

func decode(spec map[string]any, out any) error {
	return mapstructure.WeakDecode(spec, out)
}

// Built-in provider registrations
func init() {
	Register("basic", func(spec map[string]any) (Method, error) {
		var c BasicConfig
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	Register("bearer", func(spec map[string]any) (Method, error) {
		var c BearerConfig
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	Register("oauth2", func(spec map[string]any) (Method, error) {
		var c ClientCredentialsConfig
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
	Register("jwt", func(spec map[string]any) (Method, error) {
		var c JWTConfig
		if err := decode(spec, &c); err != nil {
			return nil, err
		}
		return c, nil
	})
}
