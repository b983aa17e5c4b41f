// Command nile runs a reference dispatch server: a small task-tracking
// catalog served over REST, WebSocket, and the CLI. Embedding programs
// build their own binary the same way, handing their services to
// cli.NewRootCommand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/cli"
	"github.com/nile-squad/nile/internal/result"
	"github.com/nile-squad/nile/internal/store"
)

func main() {
	root := cli.NewRootCommand(cli.App{
		Name:     "nile",
		Services: services,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

func boolPtr(b bool) *bool { return &b }

func services(st *store.Store) []*catalog.Service {
	svc := &catalog.Service{
		Name:        "tasks",
		Description: "reference task tracking service",
		Actions: []*catalog.Action{
			{
				Name:        "ping",
				Description: "liveness probe",
				Protected:   boolPtr(false),
				Handler: func(ctx context.Context, payload any, nc *catalog.Context) result.SafeResult {
					return result.Ok("pong", nil)
				},
			},
		},
	}
	if st != nil {
		svc.Subs = []catalog.Sub{{
			Name:        "items",
			Description: "task records",
			Schema:      `{ title: string, done?: bool }`,
		}}
	}
	return []*catalog.Service{svc}
}
