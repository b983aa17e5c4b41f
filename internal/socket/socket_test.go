package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/result"
)

const testSecret = "socket-test-secret"

func boolPtr(b bool) *bool { return &b }

func newExecutor(t *testing.T, authOpts auth.Options) *executor.Executor {
	t.Helper()

	svc := &catalog.Service{
		Name: "tasks",
		Actions: []*catalog.Action{
			{
				Name: "echo",
				Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
					return result.Ok("echoed", payload)
				},
			},
			{
				Name: "whoami",
				Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
					return result.Ok("identity", nc.Identity.UserID)
				},
			},
			{
				Name:   "restOnly",
				Hidden: []catalog.Protocol{catalog.ProtocolSocket},
				Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
					return result.Ok("rest only", nil)
				},
			},
		},
	}
	exec, err := executor.New(executor.Config{
		Services: []*catalog.Service{svc},
		Auth:     authOpts,
	})
	require.NoError(t, err)
	return exec
}

func signToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-3",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, ev Event) Reply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestHandshakeRejectedWithoutToken(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeAcceptedWithBearer(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + signToken(t)}}
	conn := dial(t, ts, header)

	reply := roundTrip(t, conn, Event{ID: "1", Event: EventPing})
	assert.Equal(t, "1", reply.ID)
	assert.Equal(t, EventPing, reply.Event)
	assert.True(t, reply.Result.Status)
	assert.Equal(t, "pong", reply.Result.Message)
}

func TestExecuteOverSocket(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + signToken(t)}}
	conn := dial(t, ts, header)

	reply := roundTrip(t, conn, Event{
		ID:      "exec-1",
		Event:   EventExecute,
		Service: "tasks",
		Action:  "whoami",
	})
	assert.Equal(t, "exec-1", reply.ID)
	assert.True(t, reply.Result.Status)
	assert.Equal(t, "user-3", reply.Result.Data)
}

func TestExecutePreservesOrderAndCorrelation(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + signToken(t)}}
	conn := dial(t, ts, header)

	for _, id := range []string{"a", "b", "c"} {
		reply := roundTrip(t, conn, Event{
			ID:      id,
			Event:   EventExecute,
			Service: "tasks",
			Action:  "echo",
			Payload: map[string]any{"tag": id},
		})
		assert.Equal(t, id, reply.ID)
		assert.Equal(t, map[string]any{"tag": id}, reply.Result.Data)
	}
}

func TestSocketHiddenActionReadsAsAbsent(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + signToken(t)}}
	conn := dial(t, ts, header)

	reply := roundTrip(t, conn, Event{
		ID:      "h",
		Event:   EventExecute,
		Service: "tasks",
		Action:  "restOnly",
	})
	assert.False(t, reply.Result.Status)
	data, ok := reply.Result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(result.ErrIDActionNotFound), data["error_id"])
}

func TestListServicesAndActions(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + signToken(t)}}
	conn := dial(t, ts, header)

	services := roundTrip(t, conn, Event{ID: "ls", Event: EventListServices})
	assert.True(t, services.Result.Status)

	actions := roundTrip(t, conn, Event{ID: "la", Event: EventListActions, Service: "tasks"})
	assert.True(t, actions.Result.Status)

	missing := roundTrip(t, conn, Event{ID: "lm", Event: EventListActions, Service: "nope"})
	assert.False(t, missing.Result.Status)
}

func TestUnknownEvent(t *testing.T) {
	exec := newExecutor(t, auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret})
	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	header := http.Header{"Authorization": {"Bearer " + signToken(t)}}
	conn := dial(t, ts, header)

	reply := roundTrip(t, conn, Event{ID: "x", Event: "selfDestruct"})
	assert.False(t, reply.Result.Status)
}

func TestPublicCatalogWithoutAuth(t *testing.T) {
	svc := &catalog.Service{
		Name: "open",
		Actions: []*catalog.Action{{
			Name:      "echo",
			Protected: boolPtr(false),
			Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
				return result.Ok("echoed", payload)
			},
		}},
	}
	exec, err := executor.New(executor.Config{Services: []*catalog.Service{svc}})
	require.NoError(t, err)

	ts := httptest.NewServer(New(exec))
	t.Cleanup(ts.Close)

	conn := dial(t, ts, nil)
	reply := roundTrip(t, conn, Event{
		ID:      "1",
		Event:   EventExecute,
		Service: "open",
		Action:  "echo",
		Payload: map[string]any{"v": "ok"},
	})
	assert.True(t, reply.Result.Status)
}
