// Package rpc is the in-process adapter: a thin client over the executor
// for embedding programs, background jobs, and agent-driven callers that
// never cross a network boundary.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/result"
)

// Results modes. ModeData returns the SafeResult as-is; ModeJSON replaces
// Data with its canonical JSON encoding, for callers that forward results
// over text channels.
const (
	ModeData = "data"
	ModeJSON = "json"
)

// Client invokes catalog actions in-process.
type Client struct {
	exec     *executor.Executor
	mode     string
	identity *auth.Identity
}

// Option configures a Client.
type Option func(*Client)

// WithResultsMode selects data or json results. Unknown modes fall back to
// data.
func WithResultsMode(mode string) Option {
	return func(c *Client) { c.mode = mode }
}

// WithAgentIdentity makes every call run under the synthetic agent identity
// for the given organization, bypassing token verification. In-process
// callers are trusted by construction.
func WithAgentIdentity(organizationID string) Option {
	return func(c *Client) {
		c.identity = &auth.Identity{
			UserID:         "agent",
			OrganizationID: organizationID,
			Method:         auth.StrategyAgent,
		}
	}
}

// WithIdentity makes every call run under a caller-supplied trusted
// identity.
func WithIdentity(id auth.Identity) Option {
	return func(c *Client) { c.identity = &id }
}

// New builds an in-process client over an executor.
func New(exec *executor.Executor, opts ...Option) *Client {
	c := &Client{exec: exec, mode: ModeData}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call executes one action. Lookup, auth, validation, and execution failures
// all come back as Err results, never as Go errors.
func (c *Client) Call(ctx context.Context, service, action string, payload map[string]any) result.SafeResult {
	if hidden(c.exec, service, action) {
		return result.Errf(result.ErrIDActionNotFound, "action %q not found in service %q", action, service)
	}

	res := c.exec.Execute(ctx, executor.Request{
		Service:  service,
		Action:   action,
		Payload:  payload,
		Identity: c.identity,
	})
	if c.mode == ModeJSON && res.Data != nil {
		if encoded, err := json.Marshal(res.Data); err == nil {
			res.Data = string(encoded)
		}
	}
	return res
}

// CallWithAuth executes one action authenticating with an explicit
// credential bundle instead of the client's fixed identity.
func (c *Client) CallWithAuth(ctx context.Context, service, action string, payload map[string]any, ac auth.Context) result.SafeResult {
	if hidden(c.exec, service, action) {
		return result.Errf(result.ErrIDActionNotFound, "action %q not found in service %q", action, service)
	}
	return c.exec.Execute(ctx, executor.Request{
		Service: service,
		Action:  action,
		Payload: payload,
		Auth:    ac,
	})
}

// ListServices returns the catalog slice visible in-process.
func (c *Client) ListServices() []executor.ServiceInfo {
	return c.exec.ListServices(catalog.ProtocolRPC)
}

// ListActions returns the actions of one service visible in-process.
func (c *Client) ListActions(service string) ([]executor.ActionInfo, bool) {
	return c.exec.ListActions(service, catalog.ProtocolRPC)
}

func hidden(exec *executor.Executor, service, action string) bool {
	svc, ok := exec.Catalog().Service(service)
	if !ok {
		return false
	}
	a, ok := svc.Action(action)
	return ok && !a.VisibleOn(catalog.ProtocolRPC)
}
