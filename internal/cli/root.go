// Package cli implements the nile command line interface. The CLI operates
// on an App: the embedding program's service registrations plus a YAML
// server configuration.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/catalog"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/store"
)

// App is what the embedding program hands to the CLI: a name and the
// service registrations. Services receives the opened store (nil when the
// configuration declares none) so table-backed subs can bind to it.
type App struct {
	Name     string
	Services func(st *store.Store) []*catalog.Service
	OnAction executor.GlobalHook

	// Sessions backs the betterauth strategy. Identity providers are bound
	// in code, not configuration; a config that selects betterauth without
	// this set fails auth resolution at build time.
	Sessions auth.SessionAccessor

	// AuthHandler, when non-nil, overrides the configured strategy with a
	// custom handler.
	AuthHandler auth.Handler
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nile CLI.
func NewRootCommand(app App) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   app.Name,
		Short: fmt.Sprintf("%s - a nile dispatch server", app.Name),
		Long:  "Declarative service/action dispatch: one catalog, one execution pipeline, every transport.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to the server configuration file")

	cmd.AddCommand(NewServeCommand(app, opts))
	cmd.AddCommand(NewInvokeCommand(app, opts))
	cmd.AddCommand(NewServicesCommand(app, opts))
	cmd.AddCommand(NewValidateCommand(app, opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
