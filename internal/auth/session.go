package auth

import (
	"context"

	"github.com/nile-squad/nile/internal/result"
)

// Session is what an identity provider returns for an authenticated caller:
// the user record and the session record, both as raw field maps.
type Session struct {
	User    map[string]any
	Session map[string]any
}

// SessionAccessor is the bound identity-provider surface the betterauth
// strategy consumes. Implementations resolve whatever cookie or header
// material the provider uses; the engine never sees provider internals.
type SessionAccessor interface {
	GetSession(ctx context.Context, headers map[string]string) (*Session, error)
}

// newSessionHandler wraps a SessionAccessor. Missing session, missing user,
// and missing identity fields are distinct failures so operators can tell
// "not signed in" from a provider contract drift.
func newSessionHandler(sessions SessionAccessor) Handler {
	return func(ctx context.Context, ac Context) (result.SafeResult, error) {
		sess, err := sessions.GetSession(ctx, ac.Headers)
		if err != nil {
			return result.Errf(result.ErrIDAuthFailed, "session lookup failed: %v", err), nil
		}
		if sess == nil || sess.Session == nil {
			return result.Err("no active session", result.ErrIDAuthFailed), nil
		}
		if sess.User == nil {
			return result.Err("session has no user record", result.ErrIDAuthFailed), nil
		}

		identity, errRes, ok := identityFromClaims(sess.User, StrategyBetterAuth)
		if !ok {
			return errRes, nil
		}
		// The provider may scope the session to an organization even when
		// the user record does not carry one.
		if identity.OrganizationID == "" {
			identity.OrganizationID = claimString(sess.Session, orgIDAliases)
		}
		return OkIdentity(identity), nil
	}
}
