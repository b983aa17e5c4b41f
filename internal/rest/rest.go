// Package rest exposes the unified executor over HTTP. The adapter only
// translates: request shapes into executor.Request, SafeResult error tags
// into status codes. No dispatch logic lives here.
package rest

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/ratelimit"
	"github.com/nile-squad/nile/internal/result"
)

// Server is the REST adapter.
type Server struct {
	exec    *executor.Executor
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	cors    map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter enables per-client rate limiting.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithCORS sets the allowed origins.
func WithCORS(origins []string) Option {
	return func(s *Server) {
		s.cors = make(map[string]bool, len(origins))
		for _, o := range origins {
			s.cors[o] = true
		}
	}
}

// New builds the REST adapter over an executor.
func New(exec *executor.Executor, opts ...Option) *Server {
	s := &Server{exec: exec, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler:
//
//	GET  /services                      catalog introspection
//	GET  /services/{service}            actions of one service
//	POST /services/{service}/{action}   unified execution
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Get("/services", s.handleListServices)
	r.Get("/services/{service}", s.handleListActions)
	r.Post("/services/{service}/{action}", s.handleExecute)
	return r
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services := s.exec.ListServices(catalog.ProtocolREST)
	writeResult(w, http.StatusOK, result.Ok("services", services))
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	actions, ok := s.exec.ListActions(service, catalog.ProtocolREST)
	if !ok {
		writeResult(w, http.StatusBadRequest,
			result.Errf(result.ErrIDServiceNotFound, "service %q not found", service))
		return
	}
	writeResult(w, http.StatusOK, result.Ok("actions", actions))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow(r.Context(), clientKey(r)) {
		writeResult(w, http.StatusTooManyRequests,
			result.Err("rate limit exceeded", result.ErrIDRateLimited))
		return
	}

	service := chi.URLParam(r, "service")
	actionName := chi.URLParam(r, "action")

	// Hidden actions are indistinguishable from absent ones.
	if svc, ok := s.exec.Catalog().Service(service); ok {
		if a, ok := svc.Action(actionName); ok && !a.VisibleOn(catalog.ProtocolREST) {
			writeResult(w, http.StatusBadRequest,
				result.Errf(result.ErrIDActionNotFound, "action %q not found in service %q", actionName, service))
			return
		}
	}

	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	res := s.exec.Execute(r.Context(), executor.Request{
		Service:   service,
		Action:    actionName,
		Payload:   payload,
		Auth:      authInput(r, payload),
		Transport: r,
	})
	writeResult(w, statusFor(res), res)
}

// decodePayload reads the JSON body; an empty body is an empty payload.
func decodePayload(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	payload := map[string]any{}
	if r.Body == nil || r.ContentLength == 0 {
		return payload, true
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeResult(w, http.StatusBadRequest,
			result.Err("request body is not valid JSON", result.ErrIDValidationFailed))
		return nil, false
	}
	return payload, true
}

// authInput lifts credentials from headers, cookies, and the body's
// auth.token field into the transport-agnostic bundle.
func authInput(r *http.Request, payload map[string]any) auth.Context {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	token := ""
	if authField, ok := payload["auth"].(map[string]any); ok {
		token, _ = authField["token"].(string)
	}

	return auth.Context{Headers: headers, Cookies: cookies, PayloadToken: token}
}

// statusFor maps error tags to HTTP status codes.
func statusFor(res result.SafeResult) int {
	if res.IsOk {
		return http.StatusOK
	}
	switch res.ErrorID() {
	case result.ErrIDAuthFailed, result.ErrIDNoAuthHandler:
		return http.StatusUnauthorized
	case result.ErrIDRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func writeResult(w http.ResponseWriter, status int, res result.SafeResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res.Response())
}

// clientKey identifies a caller for rate limiting: the remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.cors[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
