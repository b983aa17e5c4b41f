// Package pipeline runs an action's before/main/after hook chain. Every
// step is strictly sequential: each hook's output is the next step's input
// and the audit log reflects a total order. One HookContext is created per
// top-level execution and dropped when it returns; nothing here is shared
// across calls.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/result"
)

// LogEntry records one hook invocation. Entries are appended in execution
// order and never mutated afterwards.
type LogEntry struct {
	Name   string `json:"name"`
	Input  any    `json:"input"`
	Output any    `json:"output"`
	Passed bool   `json:"passed"`
}

// Log is the ordered audit trail of one execution.
type Log struct {
	Before []LogEntry `json:"before"`
	After  []LogEntry `json:"after"`
}

// Trace is the audit-trail wrapper exposed when an action opts into
// pipeline results.
type Trace struct {
	State map[string]any `json:"state"`
	Log   Log            `json:"log"`
}

// Wrapped is the pipeline result shape: the final output plus the trace.
type Wrapped struct {
	Result   any   `json:"result"`
	Pipeline Trace `json:"pipeline"`
}

// HookContext is the per-invocation execution state. State is shared by
// reference with every hook and the primary handler of this one call.
type HookContext struct {
	ActionName string
	Input      any
	Output     any
	Failed     bool
	State      map[string]any
	Log        Log
}

// Resolver maps a hook name to a registered action.
type Resolver func(name string) (*catalog.Action, bool)

// Executor runs hook pipelines. Safe for concurrent use; all mutable state
// lives in the per-call HookContext.
type Executor struct {
	resolve Resolver
	logger  *slog.Logger
	newID   func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithIDGenerator overrides correlation-id generation. Tests use a fixed
// generator for deterministic output.
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) { e.newID = gen }
}

// New creates a hook executor over the given action resolver.
func New(resolve Resolver, opts ...Option) *Executor {
	e := &Executor{
		resolve: resolve,
		logger:  slog.Default(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the action with its declared hooks.
//
// Before hooks chain the payload: each passing hook's output feeds the next
// step. A failing hook with CanFail=false aborts the call with that hook's
// error; with CanFail=true the failure is logged and downstream steps see
// the last known-good value. The primary handler failing always aborts
// (after hooks are skipped). Anything that panics is caught here, logged
// with a correlation id, and converted to an Err.
func (e *Executor) Execute(ctx context.Context, action *catalog.Action, payload any, nc *catalog.Context) (res result.SafeResult) {
	hc := &HookContext{
		ActionName: action.Name,
		Input:      payload,
		State:      make(map[string]any),
		Log: Log{
			Before: make([]LogEntry, 0),
			After:  make([]LogEntry, 0),
		},
	}

	defer func() {
		if r := recover(); r != nil {
			correlationID := e.newID()
			e.logger.Error("action pipeline failed",
				"action", action.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprint(r),
			)
			res = result.ErrWith(
				fmt.Sprintf("Action '%s' pipeline failed", action.Name),
				result.ErrorData{ErrorID: result.ErrIDExecutionError, CorrelationID: correlationID},
			)
		}
	}()

	if nc == nil {
		nc = catalog.NewContext(e.newID())
	}
	enhanced := nc.WithHookState(hc.State)

	current := payload
	if action.Hooks != nil {
		if abort, abortRes := e.runChain(ctx, action.Hooks.Before, &hc.Log.Before, &current, enhanced); abort {
			return abortRes
		}
	}

	mainRes := action.Handler(ctx, current, enhanced)
	if mainRes.IsError {
		hc.Failed = true
		return mainRes
	}
	hc.Output = mainRes.Data
	current = mainRes.Data

	if action.Hooks != nil {
		if abort, abortRes := e.runChain(ctx, action.Hooks.After, &hc.Log.After, &current, enhanced); abort {
			return abortRes
		}
	}

	if action.PipelineResult {
		return result.Ok(mainRes.Message, Wrapped{
			Result:   current,
			Pipeline: Trace{State: hc.State, Log: hc.Log},
		})
	}
	return result.Ok(mainRes.Message, current)
}

// runChain executes one hook list, appending a log entry per hook and
// threading current through passing hooks. An unresolvable hook name is a
// programmer mistake and fails fast via panic (recovered by Execute).
func (e *Executor) runChain(ctx context.Context, defs []catalog.HookDefinition, entries *[]LogEntry, current *any, nc *catalog.Context) (bool, result.SafeResult) {
	for _, def := range defs {
		hook, ok := e.resolve(def.Name)
		if !ok {
			panic(fmt.Sprintf("hook %q is not a registered action", def.Name))
		}

		input := *current
		hres := e.invokeHook(ctx, hook, input, nc)

		*entries = append(*entries, LogEntry{
			Name:   def.Name,
			Input:  input,
			Output: hres.Data,
			Passed: hres.IsOk,
		})

		switch {
		case hres.IsOk:
			*current = hres.Data
		case !def.CanFail:
			return true, hres
		default:
			// CanFail: downstream steps see the pre-hook input.
			e.logger.Warn("hook failed, continuing",
				"hook", def.Name,
				"message", hres.Message,
			)
		}
	}
	return false, result.SafeResult{}
}

// invokeHook runs one hook, converting a panic into a well-formed Err so
// the chain's canFail semantics apply uniformly.
func (e *Executor) invokeHook(ctx context.Context, hook *catalog.Action, input any, nc *catalog.Context) (res result.SafeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = result.Errf(result.ErrIDExecutionError, "hook '%s' panicked: %v", hook.Name, r)
		}
	}()
	return hook.Handler(ctx, input, nc)
}
