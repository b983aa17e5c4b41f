package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/result"
)

const testSecret = "rest-test-secret"

func boolPtr(b bool) *bool { return &b }

func testService() *catalog.Service {
	return &catalog.Service{
		Name: "notes",
		Actions: []*catalog.Action{
			{
				Name:      "echo",
				Protected: boolPtr(false),
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
				Name:       "checked",
				Protected:  boolPtr(false),
				Validation: `{ title: string }`,
				Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
					return result.Ok("stored", payload)
				},
			},
			{
				Name:      "internal",
				Protected: boolPtr(false),
				Hidden:    []catalog.Protocol{catalog.ProtocolREST},
				Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
					return result.Ok("internal only", nil)
				},
			},
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	exec, err := executor.New(executor.Config{
		Services: []*catalog.Service{testService()},
		Auth:     auth.Options{Strategy: auth.StrategyJWT, Secret: testSecret},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(New(exec, opts...).Router())
	t.Cleanup(ts.Close)
	return ts
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func postJSON(t *testing.T, url string, body string, headers map[string]string) (*http.Response, result.Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out result.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func errorID(t *testing.T, out result.Response) string {
	t.Helper()
	data, ok := out.Data.(map[string]any)
	require.True(t, ok, "error response carries no data object")
	id, _ := data["error_id"].(string)
	return id
}

func TestExecutePublicAction(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postJSON(t, ts.URL+"/services/notes/echo", `{"note":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Status)
	assert.Equal(t, "echoed", out.Message)
	assert.Equal(t, map[string]any{"note": "hi"}, out.Data)
}

func TestExecuteEmptyBody(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postJSON(t, ts.URL+"/services/notes/echo", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Status)
}

func TestExecuteMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postJSON(t, ts.URL+"/services/notes/echo", `{"broken`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Status)
	assert.Equal(t, string(result.ErrIDValidationFailed), errorID(t, out))
}

func TestStatusMapping(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantID     result.ErrorID
	}{
		{
			name:       "unknown service",
			path:       "/services/nope/echo",
			wantStatus: http.StatusBadRequest,
			wantID:     result.ErrIDServiceNotFound,
		},
		{
			name:       "unknown action",
			path:       "/services/notes/nope",
			wantStatus: http.StatusBadRequest,
			wantID:     result.ErrIDActionNotFound,
		},
		{
			name:       "hidden action reads as absent",
			path:       "/services/notes/internal",
			wantStatus: http.StatusBadRequest,
			wantID:     result.ErrIDActionNotFound,
		},
		{
			name:       "protected without credentials",
			path:       "/services/notes/whoami",
			wantStatus: http.StatusUnauthorized,
			wantID:     result.ErrIDAuthFailed,
		},
		{
			name:       "validation failure",
			path:       "/services/notes/checked",
			body:       `{"title":7}`,
			wantStatus: http.StatusBadRequest,
			wantID:     result.ErrIDValidationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postJSON(t, ts.URL+tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.False(t, out.Status)
			assert.Equal(t, string(tt.wantID), errorID(t, out))
		})
	}
}

func TestBearerHeaderAuth(t *testing.T) {
	ts := newTestServer(t)

	token := signToken(t, jwt.MapClaims{
		"sub": "user-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	resp, out := postJSON(t, ts.URL+"/services/notes/whoami", "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Status)
	assert.Equal(t, "user-9", out.Data)
}

func TestPayloadTokenAuth(t *testing.T) {
	ts := newTestServer(t)

	token := signToken(t, jwt.MapClaims{
		"sub": "user-12",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	body := fmt.Sprintf(`{"auth":{"token":%q}}`, token)
	resp, out := postJSON(t, ts.URL+"/services/notes/whoami", body, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Status)
	assert.Equal(t, "user-12", out.Data)
}

func TestExpiredToken(t *testing.T) {
	ts := newTestServer(t)

	token := signToken(t, jwt.MapClaims{
		"sub": "user-9",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	resp, out := postJSON(t, ts.URL+"/services/notes/whoami", "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(result.ErrIDAuthFailed), errorID(t, out))
}

func TestListServices(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/services")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out result.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Status)

	raw, err := json.Marshal(out.Data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"notes"`)
}

func TestListActionsHidesRESTHidden(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/services/notes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out result.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	raw, err := json.Marshal(out.Data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"echo"`)
	assert.NotContains(t, string(raw), `"internal"`)
}

func TestListActionsUnknownService(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/services/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, WithCORS([]string{"https://app.example.com"}))

	allowed, err := http.NewRequest(http.MethodOptions, ts.URL+"/services/notes/echo", nil)
	require.NoError(t, err)
	allowed.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(allowed)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	denied, err := http.NewRequest(http.MethodOptions, ts.URL+"/services/notes/echo", nil)
	require.NoError(t, err)
	denied.Header.Set("Origin", "https://evil.example.com")
	resp2, err := http.DefaultClient.Do(denied)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}
