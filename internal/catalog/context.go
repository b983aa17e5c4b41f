package catalog

// Context is the per-call request context threaded through handlers and
// hooks. One instance is created per inbound call and discarded when the
// call completes; instances are never shared across calls.
//
// Two key/value surfaces coexist: Values (free-form, call-wide) and
// HookState (set by the hook pipeline, shared by reference across the
// hooks and primary handler of one invocation).
type Context struct {
	RequestID string

	// Identity is the resolved caller; zero when the action is unprotected
	// and no credentials were supplied.
	Identity      Identity
	Authenticated bool

	// Transport is an opaque back-reference to the originating transport
	// object (http request, socket connection), for adapter-aware handlers.
	Transport any

	// HookState is the mutable bag shared across one hook pipeline. Nil
	// outside hook execution.
	HookState map[string]any

	values map[string]any
}

// NewContext creates a fresh per-call context.
func NewContext(requestID string) *Context {
	return &Context{RequestID: requestID, values: make(map[string]any)}
}

// Set stores a call-scoped value.
func (c *Context) Set(key string, v any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = v
}

// Get reads a call-scoped value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// WithHookState returns a shallow copy bound to the given hook-state bag.
// The copy shares the call-scoped values map so hooks and the primary
// handler observe each other's Set calls.
func (c *Context) WithHookState(state map[string]any) *Context {
	copied := *c
	copied.HookState = state
	return &copied
}
