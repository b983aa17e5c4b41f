// Package socket exposes the unified executor over a WebSocket connection.
// The handshake is authenticated before the upgrade; afterwards the
// connection serves a JSON event protocol where every request re-derives its
// credentials from the handshake, so a revoked session fails on the next
// call rather than living as long as the connection.
package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/result"
)

// Event names the connection understands.
const (
	EventExecute      = "executeAction"
	EventListServices = "listServices"
	EventListActions  = "listActions"
	EventPing         = "ping"
)

// Event is one inbound frame. ID is echoed back for correlation.
type Event struct {
	ID      string         `json:"id,omitempty"`
	Event   string         `json:"event"`
	Service string         `json:"service,omitempty"`
	Action  string         `json:"action,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Reply is one outbound frame.
type Reply struct {
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event"`
	Result result.Response `json:"result"`
}

// Server is the WebSocket adapter.
type Server struct {
	exec     *executor.Executor
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithCheckOrigin overrides the upgrade origin check.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = check }
}

// New builds the WebSocket adapter over an executor.
func New(exec *executor.Executor, opts ...Option) *Server {
	s := &Server{
		exec:   exec,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP authenticates the handshake, upgrades, and runs the event loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ac := handshakeAuth(r)

	if res, configured := s.exec.Authenticate(r.Context(), ac); configured && !res.IsOk {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(res.Response())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.serve(r.Context(), conn, ac, r)
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn, ac auth.Context, r *http.Request) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		reply := s.dispatch(ctx, ev, ac, r)
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, ev Event, ac auth.Context, r *http.Request) Reply {
	switch ev.Event {
	case EventPing:
		return reply(ev, result.Ok("pong", nil))

	case EventListServices:
		return reply(ev, result.Ok("services", s.exec.ListServices(catalog.ProtocolSocket)))

	case EventListActions:
		actions, ok := s.exec.ListActions(ev.Service, catalog.ProtocolSocket)
		if !ok {
			return reply(ev, result.Errf(result.ErrIDServiceNotFound, "service %q not found", ev.Service))
		}
		return reply(ev, result.Ok("actions", actions))

	case EventExecute:
		if hiddenOnSocket(s.exec, ev.Service, ev.Action) {
			return reply(ev, result.Errf(result.ErrIDActionNotFound, "action %q not found in service %q", ev.Action, ev.Service))
		}
		res := s.exec.Execute(ctx, executor.Request{
			Service:   ev.Service,
			Action:    ev.Action,
			Payload:   ev.Payload,
			Auth:      callAuth(ac, ev.Payload),
			Transport: r,
		})
		return reply(ev, res)

	default:
		return reply(ev, result.Errf(result.ErrIDActionNotFound, "unknown event %q", ev.Event))
	}
}

func reply(ev Event, res result.SafeResult) Reply {
	return Reply{ID: ev.ID, Event: ev.Event, Result: res.Response()}
}

// handshakeAuth lifts the upgrade request's headers and cookies into the
// transport-agnostic credential bundle.
func handshakeAuth(r *http.Request) auth.Context {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	return auth.Context{Headers: headers, Cookies: cookies}
}

// callAuth combines handshake credentials with a per-event payload token.
func callAuth(ac auth.Context, payload map[string]any) auth.Context {
	if authField, ok := payload["auth"].(map[string]any); ok {
		if token, ok := authField["token"].(string); ok {
			ac.PayloadToken = token
		}
	}
	return ac
}

func hiddenOnSocket(exec *executor.Executor, service, action string) bool {
	svc, ok := exec.Catalog().Service(service)
	if !ok {
		return false
	}
	a, ok := svc.Action(action)
	return ok && !a.VisibleOn(catalog.ProtocolSocket)
}
