package common

import (
	"fmt"
	"regexp"
	"strings"
)

// MaskedValue replaces any value recognised as sensitive.
const MaskedValue = "***MASKED***"

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "password", "secret_key")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement string
	Keys        []string       // Specific keys to mask (case-insensitive)
}

// DefaultSensitivePatterns covers the credentials s3smoke handles: S3 secret
// keys, parser auth material and signed request fragments. Header schemes
// come first so the authorization key pattern cannot swallow them.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "Bearer " + MaskedValue,
	},
	{
		Name:        "basic_auth",
		Regex:       regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		Replacement: "Basic " + MaskedValue,
	},
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=` + MaskedValue,
		Keys:        []string{"password", "passwd", "pwd"},
	},
	{
		Name:        "secret_key",
		Regex:       regexp.MustCompile(`(?i)(secret[_-]?(?:access[_-]?)?key|client[_-]?secret|secret)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=` + MaskedValue,
		Keys:        []string{"secret", "secret_key", "secret-key", "secret_access_key", "client_secret", "client-secret", "signing_key"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)(token|access[_-]?token|auth[_-]?token)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=` + MaskedValue,
		Keys:        []string{"token", "access_token", "auth_token", "access-token", "auth-token"},
	},
	{
		Name:        "authorization",
		Regex:       regexp.MustCompile(`(?i)(authorization)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=` + MaskedValue,
		Keys:        []string{"authorization"},
	},
	{
		Name:        "sigv4_signature",
		Regex:       regexp.MustCompile(`(?i)(X-Amz-Signature|Signature)=([0-9a-f]+)`),
		Replacement: `${1}=` + MaskedValue,
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{
		patterns: DefaultSensitivePatterns,
		enabled:  true,
	}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled
}

// AddPattern adds a new sensitive pattern. A pattern with Keys but no Regex
// gets a key=value regex built from its keys.
func (m *Masker) AddPattern(pattern SensitivePattern) {
	if pattern.Regex == nil && len(pattern.Keys) > 0 {
		keyPattern := strings.Join(pattern.Keys, "|")
		pattern.Regex = regexp.MustCompile(fmt.Sprintf("(?i)\\b(%s)\\s*[:=]\\s*['\"]?([^'\",\\s}\\]]+)['\"]?", keyPattern))
		if pattern.Replacement == "" {
			pattern.Replacement = "$1=" + MaskedValue
		}
	}
	m.patterns = append(append([]SensitivePattern{}, m.patterns...), pattern)
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled {
		return input
	}
	result := input
	for _, pattern := range m.patterns {
		if pattern.Regex == nil {
			continue
		}
		result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
	}
	return result
}

// MaskValue masks value when key names a sensitive field, otherwise applies
// the regex patterns to its string form. Non-string values without a
// sensitive key are returned unchanged.
func (m *Masker) MaskValue(key string, value any) any {
	if !m.enabled {
		return value
	}
	lowerKey := strings.ToLower(key)
	for _, pattern := range m.patterns {
		for _, sensitiveKey := range pattern.Keys {
			if lowerKey == sensitiveKey {
				return MaskedValue
			}
		}
	}
	switch v := value.(type) {
	case string:
		return m.MaskString(v)
	case error:
		return m.MaskString(v.Error())
	default:
		return value
	}
}

// MaskKeyValuePairs masks sensitive information in key-value pairs
func (m *Masker) MaskKeyValuePairs(pairs ...any) []any {
	if !m.enabled {
		return pairs
	}
	result := make([]any, len(pairs))
	for i := 0; i < len(pairs); i += 2 {
		if i+1 >= len(pairs) {
			result[i] = pairs[i]
			break
		}
		if keyStr, ok := pairs[i].(string); ok {
			result[i] = keyStr
			result[i+1] = m.MaskValue(keyStr, pairs[i+1])
			continue
		}
		result[i] = pairs[i]
		result[i+1] = pairs[i+1]
	}
	return result
}

var globalMasker = NewMasker()

// GetGlobalMasker returns the global masker instance
func GetGlobalMasker() *Masker {
	return globalMasker
}

// MaskSensitiveData masks sensitive data using the global masker
func MaskSensitiveData(input string) string {
	return globalMasker.MaskString(input)
}

// EnableMasking enables/disables global masking
func EnableMasking(enabled bool) {
	globalMasker.SetEnabled(enabled)
}
