// Package executor orchestrates unified action execution: catalog lookup,
// authentication, global hooks, payload validation, pipeline execution, and
// result normalization. Every protocol adapter calls the same Execute
// method; transports differ only in how they build the Request.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/pipeline"
	"github.com/nile-squad/nile/internal/result"
	"github.com/nile-squad/nile/internal/store"
)

// Global hook stages.
const (
	StageBefore = "before"
	StageAfter  = "after"
)

// GlobalHookEvent describes one executor-level hook invocation.
type GlobalHookEvent struct {
	Stage   string
	Service string
	Action  string
	Payload map[string]any

	// Result is the action's outcome, set only at the after stage.
	Result *result.SafeResult
}

// GlobalHook wraps every action execution. A non-Ok return aborts the call
// at the before stage and vetoes the result at the after stage.
type GlobalHook func(ctx context.Context, ev GlobalHookEvent) result.SafeResult

// ErrNoAuthHandler is returned at construction when the catalog contains
// protected actions but no authentication strategy resolves. Deployments
// fail at attach time, never per request.
var ErrNoAuthHandler = errors.New("catalog contains protected actions but no auth handler is configured")

// Config assembles an Executor.
type Config struct {
	Services []*catalog.Service

	// Store backs table-backed subs and the execution audit trail. May be
	// nil when no service declares subs; auditing is then disabled too.
	Store *store.Store

	// Auth configures the authentication strategy (see auth.Resolve).
	Auth auth.Options

	// OnAction, when set, runs around every execution with veto power.
	OnAction GlobalHook

	Logger *slog.Logger

	// NewRequestID overrides request-id generation, for tests.
	NewRequestID func() string
}

// Executor dispatches unified calls against a frozen catalog. Safe for
// concurrent use; all per-call state lives in fresh Context instances.
type Executor struct {
	catalog      *catalog.Catalog
	store        *store.Store
	authHandler  auth.Handler
	onAction     GlobalHook
	logger       *slog.Logger
	newRequestID func() string

	// One pipeline executor per service so hook names resolve within the
	// owning service first.
	pipelines map[string]*pipeline.Executor
}

// New validates the configuration and builds an executor. All
// configuration errors surface here; Execute never throws them.
func New(cfg Config) (*Executor, error) {
	cat, err := catalog.Assemble(cfg.Services, cfg.Store)
	if err != nil {
		return nil, err
	}

	handler, err := auth.Resolve(cfg.Auth)
	if err != nil {
		return nil, err
	}
	if handler == nil && hasProtectedActions(cat) {
		return nil, ErrNoAuthHandler
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := cfg.NewRequestID
	if newID == nil {
		newID = uuid.NewString
	}

	e := &Executor{
		catalog:      cat,
		store:        cfg.Store,
		authHandler:  handler,
		onAction:     cfg.OnAction,
		logger:       logger,
		newRequestID: newID,
		pipelines:    make(map[string]*pipeline.Executor),
	}
	for _, name := range cat.ServiceNames() {
		svc, _ := cat.Service(name)
		e.pipelines[name] = pipeline.New(func(hookName string) (*catalog.Action, bool) {
			return cat.ResolveHook(svc, hookName)
		}, pipeline.WithLogger(logger), pipeline.WithIDGenerator(newID))
	}
	return e, nil
}

func hasProtectedActions(cat *catalog.Catalog) bool {
	for _, name := range cat.ServiceNames() {
		svc, _ := cat.Service(name)
		for _, actionName := range svc.ActionNames("") {
			a, _ := svc.Action(actionName)
			if a.IsProtected() {
				return true
			}
		}
	}
	return false
}

// Catalog exposes the frozen catalog for adapter introspection.
func (e *Executor) Catalog() *catalog.Catalog { return e.catalog }

// Request is the canonical call signature shared by every adapter.
type Request struct {
	Service string
	Action  string
	Payload map[string]any

	// Auth carries the transport's credential bundle.
	Auth auth.Context

	// Identity, when non-nil, is a pre-resolved trusted identity and
	// bypasses the auth handler. Only in-process adapters may set it.
	Identity *auth.Identity

	// Transport is the adapter's back-reference, attached to the call
	// context for adapter-aware handlers.
	Transport any
}

// Execute runs one unified call and records it in the audit trail.
func (e *Executor) Execute(ctx context.Context, req Request) result.SafeResult {
	requestID := e.newRequestID()
	start := time.Now()

	res := e.execute(ctx, requestID, req)

	e.logger.Info("action executed",
		"request_id", requestID,
		"service", req.Service,
		"action", req.Action,
		"status", res.Status,
	)
	e.audit(ctx, requestID, req, res, time.Since(start))
	return res
}

func (e *Executor) execute(ctx context.Context, requestID string, req Request) result.SafeResult {
	svc, ok := e.catalog.Service(req.Service)
	if !ok {
		return result.Errf(result.ErrIDServiceNotFound, "service %q not found", req.Service)
	}
	action, ok := svc.Action(req.Action)
	if !ok {
		return result.Errf(result.ErrIDActionNotFound, "action %q not found in service %q", req.Action, req.Service)
	}

	nc := catalog.NewContext(requestID)
	nc.Transport = req.Transport

	if action.IsProtected() {
		if abort, errRes := e.authenticate(ctx, req, nc); abort {
			return errRes
		}
	}

	payload := e.preparePayload(action, req.Payload, nc)

	if e.onAction != nil {
		gres := e.onAction(ctx, GlobalHookEvent{
			Stage:   StageBefore,
			Service: req.Service,
			Action:  req.Action,
			Payload: payload,
		})
		if gres.IsError {
			return gres
		}
	}

	if s := action.Schema(); s != nil {
		if fieldErrs := s.Validate(payload); len(fieldErrs) > 0 {
			return result.ErrWith("payload validation failed", result.ErrorData{
				ErrorID: result.ErrIDValidationFailed,
				Fields:  fieldErrs,
			})
		}
	}

	res := e.pipelines[svc.Name].Execute(ctx, action, payload, nc)

	if e.onAction != nil {
		gres := e.onAction(ctx, GlobalHookEvent{
			Stage:   StageAfter,
			Service: req.Service,
			Action:  req.Action,
			Payload: payload,
			Result:  &res,
		})
		// The after hook has final veto power even over a success.
		if gres.IsError {
			return gres
		}
	}

	return res
}

// authenticate resolves the caller identity onto nc. Returns (true, err
// result) when the call must abort.
func (e *Executor) authenticate(ctx context.Context, req Request, nc *catalog.Context) (bool, result.SafeResult) {
	if req.Identity != nil {
		nc.Identity = *req.Identity
		nc.Authenticated = true
		return false, result.SafeResult{}
	}

	if e.authHandler == nil {
		return true, result.Err("no authentication handler configured", result.ErrIDNoAuthHandler)
	}

	res, err := e.authHandler(ctx, req.Auth)
	if err != nil {
		// The handler contract reserves Go errors for configuration
		// mistakes; this deployment is broken, not this caller.
		e.logger.Error("auth handler misconfigured", "error", err)
		return true, result.Err("authentication misconfigured", result.ErrIDNoAuthHandler)
	}
	if !res.IsOk {
		return true, res
	}

	identity, ok := auth.IdentityFrom(res)
	if !ok {
		return true, result.Err("auth handler returned no identity", result.ErrIDAuthFailed)
	}
	nc.Identity = identity
	nc.Authenticated = true
	return false, result.SafeResult{}
}

// Authenticate runs the configured auth handler against a credential bundle
// outside of any action call, for adapters that gate at connection time.
// ok is false when no handler is configured.
func (e *Executor) Authenticate(ctx context.Context, ac auth.Context) (result.SafeResult, bool) {
	if e.authHandler == nil {
		return result.SafeResult{}, false
	}
	res, err := e.authHandler(ctx, ac)
	if err != nil {
		e.logger.Error("auth handler misconfigured", "error", err)
		return result.Err("authentication misconfigured", result.ErrIDNoAuthHandler), true
	}
	return res, true
}

// preparePayload copies the inbound payload and, for generated CRUD
// actions, merges the resolved identity fields in before validation.
func (e *Executor) preparePayload(action *catalog.Action, payload map[string]any, nc *catalog.Context) map[string]any {
	prepared := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		prepared[k] = v
	}
	if action.IsGenerated() && nc.Authenticated {
		if _, ok := prepared["userId"]; !ok && nc.Identity.UserID != "" {
			prepared["userId"] = nc.Identity.UserID
		}
		if _, ok := prepared["organizationId"]; !ok && nc.Identity.OrganizationID != "" {
			prepared["organizationId"] = nc.Identity.OrganizationID
		}
	}
	return prepared
}

// audit best-effort persists one execution row; failures never affect the
// call's result.
func (e *Executor) audit(ctx context.Context, requestID string, req Request, res result.SafeResult, took time.Duration) {
	if e.store == nil {
		return
	}
	err := e.store.WriteExecution(ctx, store.ExecutionRecord{
		ID:         requestID,
		Service:    req.Service,
		Action:     req.Action,
		Status:     res.Status,
		ErrorID:    string(res.ErrorID()),
		DurationMs: took.Milliseconds(),
	})
	if err != nil {
		e.logger.Warn("audit write failed", "request_id", requestID, "error", err)
	}
}

// String implements fmt.Stringer for startup logs.
func (e *Executor) String() string {
	return fmt.Sprintf("executor(%d services)", len(e.catalog.ServiceNames()))
}
