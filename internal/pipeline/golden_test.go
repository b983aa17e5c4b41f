package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/result"
)

// TestExecute_GoldenTrace locks the audit-trail shape against a golden
// file. Regenerate with: go test ./internal/pipeline -update
func TestExecute_GoldenTrace(t *testing.T) {
	hooks := map[string]*catalog.Action{
		"trim": {
			Name: "trim",
			Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
				nc.HookState["trimmed_by"] = "trim"
				in, _ := payload.(map[string]any)
				out := make(map[string]any, len(in)+1)
				for k, v := range in {
					out[k] = v
				}
				out["trimmed"] = true
				return result.Ok("trimmed", out)
			},
		},
		"record": {
			Name: "record",
			Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
				in, _ := payload.(map[string]any)
				out := make(map[string]any, len(in)+1)
				for k, v := range in {
					out[k] = v
				}
				out["recorded"] = true
				return result.Ok("recorded", out)
			},
		},
	}
	e := New(mapResolver(hooks))

	action := &catalog.Action{
		Name:           "greet",
		PipelineResult: true,
		Hooks: &catalog.Hooks{
			Before: []catalog.HookDefinition{{Name: "trim"}},
			After:  []catalog.HookDefinition{{Name: "record"}},
		},
		Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
			in, _ := payload.(map[string]any)
			name, _ := in["name"].(string)
			return result.Ok("greeted", map[string]any{"greeting": "hello " + name})
		},
	}

	res := e.Execute(context.Background(), action, map[string]any{"name": "ada"}, nil)
	require.True(t, res.IsOk, res.Message)

	wrapped, ok := res.Data.(Wrapped)
	require.True(t, ok)

	data, err := json.MarshalIndent(wrapped, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t)
	g.Assert(t, "pipeline_trace", data)
}
