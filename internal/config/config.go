// Package config loads the server configuration from YAML. Loading is
// strict: unknown keys are rejected and every validation problem is
// collected before reporting, so one edit-run cycle surfaces all mistakes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nile-squad/nile/internal/auth"
)

// ServerConfig is the root document.
type ServerConfig struct {
	// Name labels the server in logs and the CLI.
	Name string `yaml:"name"`

	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// StorePath is the sqlite database file backing subs and the audit
	// trail. Empty disables both.
	StorePath string `yaml:"store_path"`

	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// CORS lists the allowed origins for the REST adapter.
	CORS []string `yaml:"cors"`
}

// AuthConfig selects and parameterizes the authentication strategy.
type AuthConfig struct {
	// Strategy is betterauth, jwt, or empty for none.
	Strategy string `yaml:"strategy"`

	// Secret is the jwt HMAC key. SecretEnv names an environment variable
	// to read it from instead; set one or the other.
	Secret    string `yaml:"secret"`
	SecretEnv string `yaml:"secret_env"`

	// Method is where tokens are read from: cookie, header, or payload.
	// Empty is treated as payload.
	Method     string `yaml:"method"`
	CookieName string `yaml:"cookie_name"`
	HeaderName string `yaml:"header_name"`
}

// RateLimitConfig parameterizes the REST adapter's fixed-window limiter.
// A zero Limit disables rate limiting.
type RateLimitConfig struct {
	RedisAddr string   `yaml:"redis_addr"`
	Limit     int      `yaml:"limit"`
	Window    Duration `yaml:"window"`
}

// Duration parses Go duration strings ("30s", "1m") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// FieldError is one configuration problem.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every problem found in one document.
type ValidationError struct {
	Path   string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid config %s: %s", e.Path, strings.Join(msgs, "; "))
}

// Load reads, parses, and validates a YAML server configuration.
func Load(path string) (*ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse parses and validates a YAML document.
func Parse(raw []byte) (*ServerConfig, error) {
	var cfg ServerConfig
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if errs := cfg.validate(); len(errs) > 0 {
		return nil, &ValidationError{Path: "(inline)", Errors: errs}
	}
	return &cfg, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(time.Minute)
	}
}

func (c *ServerConfig) validate() []FieldError {
	var errs []FieldError

	if c.Name == "" {
		errs = append(errs, FieldError{"name", "server name is required"})
	}

	switch c.Auth.Strategy {
	case "", auth.StrategyBetterAuth:
	case auth.StrategyJWT:
		if c.Auth.Secret == "" && c.Auth.SecretEnv == "" {
			errs = append(errs, FieldError{"auth.secret", "jwt strategy requires secret or secret_env"})
		}
		if c.Auth.Secret != "" && c.Auth.SecretEnv != "" {
			errs = append(errs, FieldError{"auth.secret", "set secret or secret_env, not both"})
		}
	case auth.StrategyAgent:
		errs = append(errs, FieldError{"auth.strategy", "agent strategy is not configurable; it is constructed in-process"})
	default:
		errs = append(errs, FieldError{"auth.strategy", fmt.Sprintf("unrecognized strategy %q", c.Auth.Strategy)})
	}

	switch c.Auth.Method {
	case "", auth.MethodCookie, auth.MethodHeader, auth.MethodPayload:
	default:
		errs = append(errs, FieldError{"auth.method", fmt.Sprintf("unrecognized token method %q", c.Auth.Method)})
	}

	if c.RateLimit.Limit > 0 && c.RateLimit.RedisAddr == "" {
		errs = append(errs, FieldError{"rate_limit.redis_addr", "rate limiting requires a redis address"})
	}
	if c.RateLimit.Limit < 0 {
		errs = append(errs, FieldError{"rate_limit.limit", "limit cannot be negative"})
	}

	return errs
}

// AuthOptions resolves the auth slice into bound executor options: the
// secret is read from the environment when secret_env is set.
func (c *ServerConfig) AuthOptions() (auth.Options, error) {
	secret := c.Auth.Secret
	if c.Auth.SecretEnv != "" {
		secret = os.Getenv(c.Auth.SecretEnv)
		if secret == "" {
			return auth.Options{}, fmt.Errorf("auth secret environment variable %s is empty", c.Auth.SecretEnv)
		}
	}
	return auth.Options{
		Strategy: c.Auth.Strategy,
		Secret:   secret,
		Extract: auth.ExtractConfig{
			Method:     c.Auth.Method,
			CookieName: c.Auth.CookieName,
			HeaderName: c.Auth.HeaderName,
		},
	}, nil
}
