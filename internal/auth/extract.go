package auth

import (
	"fmt"
	"strings"
)

// Credential extraction methods. An empty method falls back to the payload
// token for backward compatibility with older clients.
const (
	MethodCookie  = "cookie"
	MethodHeader  = "header"
	MethodPayload = "payload"
)

// Extraction defaults.
const (
	DefaultCookieName = "auth_token"
	DefaultHeaderName = "authorization"
	bearerPrefix      = "Bearer "
)

// ExtractConfig selects where the raw credential is read from.
type ExtractConfig struct {
	Method     string // cookie | header | payload | "" (payload fallback)
	CookieName string // default auth_token
	HeaderName string // default authorization
}

// MalformedCredentialError reports a credential that was present but
// unreadable (e.g. an Authorization header without the Bearer prefix).
// Distinct from the token simply being absent.
type MalformedCredentialError struct {
	Location string
	Reason   string
}

func (e *MalformedCredentialError) Error() string {
	return fmt.Sprintf("malformed credential in %s: %s", e.Location, e.Reason)
}

// ExtractToken pulls the raw credential from the configured location.
// Returns ("", nil) when the location is simply empty; a non-nil error only
// when a credential is present but malformed.
func ExtractToken(ac Context, cfg ExtractConfig) (string, error) {
	switch cfg.Method {
	case MethodCookie:
		name := cfg.CookieName
		if name == "" {
			name = DefaultCookieName
		}
		return ac.Cookies[name], nil

	case MethodHeader:
		name := cfg.HeaderName
		if name == "" {
			name = DefaultHeaderName
		}
		raw := headerValue(ac.Headers, name)
		if raw == "" {
			return "", nil
		}
		if !strings.HasPrefix(raw, bearerPrefix) {
			return "", &MalformedCredentialError{
				Location: name + " header",
				Reason:   `value must start with "Bearer "`,
			}
		}
		return strings.TrimPrefix(raw, bearerPrefix), nil

	case MethodPayload, "":
		return ac.PayloadToken, nil

	default:
		return "", fmt.Errorf("unknown auth extraction method %q", cfg.Method)
	}
}

// headerValue looks up a header case-insensitively. Adapter header maps come
// from transports with differing canonicalization rules.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
