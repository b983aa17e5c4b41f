package auth

import (
	"context"
	"fmt"

	"github.com/nile-squad/nile/internal/result"
)

// Auth strategy selectors. The set is closed; anything else is a
// configuration error.
const (
	StrategyBetterAuth = "betterauth"
	StrategyJWT        = "jwt"
	StrategyAgent      = "agent"
)

// ConfigError reports an unresolvable auth configuration. Always fatal:
// surfaced at attach time, never converted to a per-request failure.
type ConfigError struct {
	Code    string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Auth configuration error codes.
const (
	ErrCodeUnknownStrategy = "UNKNOWN_AUTH_STRATEGY"
	ErrCodeMissingSecret   = "MISSING_AUTH_SECRET"
	ErrCodeMissingSessions = "MISSING_SESSION_ACCESSOR"
	ErrCodeAgentNotGeneric = "AGENT_STRATEGY_NOT_GENERIC"
)

// Options is the auth slice of the server configuration, already resolved
// into bound values (secrets read, session accessor constructed) by the
// caller.
type Options struct {
	// Handler, when non-nil, is used verbatim and all other fields except
	// Extract are ignored.
	Handler Handler

	// Strategy selects a built-in handler: betterauth, jwt, or agent.
	// Empty means no authentication is configured.
	Strategy string

	// Secret is the HMAC key for the jwt strategy.
	Secret string

	// Sessions backs the betterauth strategy.
	Sessions SessionAccessor

	// Extract configures where the jwt strategy reads the raw token from.
	Extract ExtractConfig
}

// Resolve turns declarative auth options into a single Handler.
//
// Returns (nil, nil) when no strategy is configured at all: the caller
// decides whether "no authentication available" is acceptable (it is not,
// for protected actions). The agent strategy cannot be resolved here
// because it needs an organization id that static configuration does not
// carry; construct it directly with NewAgentHandler.
func Resolve(opts Options) (Handler, error) {
	if opts.Handler != nil {
		return opts.Handler, nil
	}

	switch opts.Strategy {
	case "":
		return nil, nil

	case StrategyBetterAuth:
		if opts.Sessions == nil {
			return nil, &ConfigError{
				Code:    ErrCodeMissingSessions,
				Message: "betterauth strategy requires a bound session accessor",
			}
		}
		return newSessionHandler(opts.Sessions), nil

	case StrategyJWT:
		if opts.Secret == "" {
			return nil, &ConfigError{
				Code:    ErrCodeMissingSecret,
				Message: "jwt strategy requires auth.secret",
			}
		}
		return newJWTHandler(opts.Secret, opts.Extract), nil

	case StrategyAgent:
		return nil, &ConfigError{
			Code:    ErrCodeAgentNotGeneric,
			Message: "agent strategy needs an organization id; construct it with NewAgentHandler",
		}

	default:
		return nil, &ConfigError{
			Code:    ErrCodeUnknownStrategy,
			Message: fmt.Sprintf("unrecognized auth strategy %q", opts.Strategy),
		}
	}
}

// NewAgentHandler builds the synthetic agent identity handler for the given
// organization. Used for system and AI-driven calls that bypass token
// verification; only in-process callers may construct it.
func NewAgentHandler(organizationID string) Handler {
	return func(ctx context.Context, ac Context) (result.SafeResult, error) {
		if organizationID == "" {
			return result.Err("agent identity requires an organization id", result.ErrIDAuthFailed), nil
		}
		return OkIdentity(Identity{
			UserID:         "agent",
			OrganizationID: organizationID,
			Method:         StrategyAgent,
		}), nil
	}
}
