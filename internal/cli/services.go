package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nile-squad/nile/internal/rpc"
)

// NewServicesCommand creates the services command.
func NewServicesCommand(app App, rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services [service]",
		Short: "List registered services and their actions",
		Long: `List registered services and their actions.

Without arguments, prints every service. With a service name, prints
that service's actions.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(app, rootOpts, args, cmd)
		},
	}
	return cmd
}

func runServices(app App, opts *RootOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(app, opts)
	if err != nil {
		return err
	}
	exec, cleanup, err := buildExecutor(app, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	client := rpc.New(exec)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if len(args) == 1 {
		actions, ok := client.ListActions(args[0])
		if !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("service %q not found", args[0]))
		}
		if opts.Format == "json" {
			return formatter.Success(actions)
		}
		for _, a := range actions {
			gate := "public"
			if a.Protected {
				gate = "protected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", a.Name, gate, a.Description)
		}
		return nil
	}

	services := client.ListServices()
	if opts.Format == "json" {
		return formatter.Success(services)
	}
	for _, svc := range services {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d actions\t%s\n", svc.Name, len(svc.Actions), svc.Description)
	}
	return nil
}
