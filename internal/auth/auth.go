// Package auth resolves caller identity for the dispatch engine.
//
// A Handler takes the transport-agnostic credential bundle (Context) and
// returns a SafeResult whose data is an Identity. Ordinary auth failures
// (missing token, bad signature, expired claims) are Err values; a Handler
// returns a Go error only for configuration mistakes, which the executor
// treats as fatal rather than per-request failures.
package auth

import (
	"context"
	"fmt"

	"github.com/nile-squad/nile/internal/result"
)

// Identity is the resolved caller identity attached to the request context.
type Identity struct {
	UserID         string         `json:"userId"`
	OrganizationID string         `json:"organizationId"`
	Method         string         `json:"method"`
	Claims         map[string]any `json:"claims,omitempty"`
}

// Context bundles the credential locations one inbound call may carry.
// Adapters build one per call; it is never shared or reused.
type Context struct {
	Headers      map[string]string
	Cookies      map[string]string
	PayloadToken string // auth.token lifted from the parsed request body
}

// Handler authenticates one call. The SafeResult data is an Identity on
// success; failures carry result.ErrIDAuthFailed.
type Handler func(ctx context.Context, ac Context) (result.SafeResult, error)

// OkIdentity wraps an Identity in a success result.
func OkIdentity(id Identity) result.SafeResult {
	return result.Ok("authenticated", id)
}

// IdentityFrom recovers the Identity from a successful auth result.
func IdentityFrom(r result.SafeResult) (Identity, bool) {
	if !r.IsOk {
		return Identity{}, false
	}
	id, ok := r.Data.(Identity)
	return id, ok
}

// Claim alias sets tolerated when mapping token claims or session fields to
// an Identity. The set is fixed; do not extend it without confirming the
// identity provider's contract.
var (
	userIDAliases = []string{"userId", "id", "sub"}
	orgIDAliases  = []string{"organizationId", "organization_id"}
)

// claimString returns the first alias present as a non-empty string.
func claimString(claims map[string]any, aliases []string) string {
	for _, k := range aliases {
		if v, ok := claims[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// identityFromClaims maps a claim set to an Identity using the tolerated
// aliases. A missing user id is an auth failure; a missing organization id
// is tolerated (single-tenant tokens).
func identityFromClaims(claims map[string]any, method string) (Identity, result.SafeResult, bool) {
	userID := claimString(claims, userIDAliases)
	if userID == "" {
		return Identity{}, result.Err(
			fmt.Sprintf("token claims missing user identity (expected one of %v)", userIDAliases),
			result.ErrIDAuthFailed,
		), false
	}
	return Identity{
		UserID:         userID,
		OrganizationID: claimString(claims, orgIDAliases),
		Method:         method,
		Claims:         claims,
	}, result.SafeResult{}, true
}
