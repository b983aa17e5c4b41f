// Package catalog defines the service/action data model and assembles the
// frozen catalog the unified executor dispatches against. Assembly happens
// once at startup; the resulting Catalog is read-only and safe to share
// across concurrent calls without locking.
package catalog

import (
	"context"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/result"
	"github.com/nile-squad/nile/internal/schema"
)

// Protocol identifies a transport surface an action can be exposed on.
type Protocol string

const (
	ProtocolREST   Protocol = "rest"
	ProtocolSocket Protocol = "socket"
	ProtocolRPC    Protocol = "rpc"
)

// Handler executes one action. The payload is the raw input (or, inside a
// hook chain, the previous step's output); nc is the per-call context. A
// handler reports failure by returning an Err result, never by panicking.
type Handler func(ctx context.Context, payload any, nc *Context) result.SafeResult

// HookDefinition references a registered action to run as a pre or post
// step. CanFail=false aborts the whole pipeline when the hook fails;
// CanFail=true records the failure and continues with the last good value.
type HookDefinition struct {
	Name    string
	CanFail bool
}

// Hooks lists the before/after chains of an action, in execution order.
type Hooks struct {
	Before []HookDefinition
	After  []HookDefinition
}

// Action is a named, invocable operation. Authored actions are registered
// by the embedding program; CRUD actions are generated from Subs at
// assembly time. Actions are immutable once the catalog is assembled.
type Action struct {
	Name        string
	Description string
	Handler     Handler

	// Validation is a CUE struct descriptor for the payload. Empty means
	// no validation; inherited from the service default when unset.
	Validation string

	// Protected controls the authentication gate. Nil means protected:
	// actions are secure by default and opt out explicitly.
	Protected *bool

	Hooks *Hooks

	// PipelineResult exposes the full audit trail wrapper
	// {result, pipeline:{state, log}} instead of the bare result.
	PipelineResult bool

	// Meta is arbitrary metadata, merged over service-level defaults.
	Meta map[string]any

	// Hidden lists protocols this action is not exposed on.
	Hidden []Protocol

	generated bool
	compiled  *schema.Schema
}

// IsProtected reports whether the auth gate applies. Unset defaults to
// protected.
func (a *Action) IsProtected() bool {
	return a.Protected == nil || *a.Protected
}

// IsGenerated reports whether this is an auto-generated CRUD action. The
// executor merges resolved identity fields into payloads of generated
// actions before validation.
func (a *Action) IsGenerated() bool { return a.generated }

// Schema returns the compiled validation schema, or nil when the action
// declares none.
func (a *Action) Schema() *schema.Schema { return a.compiled }

// VisibleOn reports whether the action is exposed on the given protocol.
func (a *Action) VisibleOn(p Protocol) bool {
	for _, h := range a.Hidden {
		if h == p {
			return false
		}
	}
	return true
}

// Sub declares a table-backed sub-service. Assembly expands it into a
// standalone service carrying generated CRUD actions bound to the record
// store.
type Sub struct {
	Name string

	// Table is the backing store table; defaults to Name.
	Table string

	// IDName is the payload field holding the record id; defaults to "id".
	IDName string

	// Schema optionally validates create payloads (CUE struct source).
	Schema string

	Description string
}

// Service is a named group of actions plus shared defaults.
type Service struct {
	Name        string
	Description string

	// Meta and Validation are defaults merged into every action that does
	// not set its own.
	Meta       map[string]any
	Validation string

	Actions []*Action
	Subs    []Sub

	actions map[string]*Action
	order   []string
}

// Action looks up an action by exact name.
func (s *Service) Action(name string) (*Action, bool) {
	a, ok := s.actions[name]
	return a, ok
}

// ActionNames returns action names in registration order, filtered to those
// visible on the given protocol ("" means all).
func (s *Service) ActionNames(p Protocol) []string {
	names := make([]string, 0, len(s.order))
	for _, name := range s.order {
		if p == "" || s.actions[name].VisibleOn(p) {
			names = append(names, name)
		}
	}
	return names
}

// Identity re-exports the resolved caller identity type for handler code.
type Identity = auth.Identity
