package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nile-squad/nile/internal/rpc"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args     string
	AgentOrg string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(app App, rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <service.action>",
		Short: "Invoke one action in-process",
		Long: `Invoke one action in-process and print its result.

Protected actions need an identity; --agent-org runs the call under the
synthetic agent identity for that organization.

Example:
  invoke orders.create --args '{"item":"widget","quantity":3}' --agent-org org-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(app, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action payload as JSON")
	cmd.Flags().StringVar(&opts.AgentOrg, "agent-org", "", "run as the agent identity of this organization")

	return cmd
}

func runInvoke(app App, opts *InvokeOptions, target string, cmd *cobra.Command) error {
	service, action, ok := strings.Cut(target, ".")
	if !ok || service == "" || action == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid target %q: expected service.action", target))
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(opts.Args), &payload); err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}

	cfg, err := loadConfig(app, opts.RootOptions)
	if err != nil {
		return err
	}
	exec, cleanup, err := buildExecutor(app, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var clientOpts []rpc.Option
	if opts.AgentOrg != "" {
		clientOpts = append(clientOpts, rpc.WithAgentIdentity(opts.AgentOrg))
	}
	client := rpc.New(exec, clientOpts...)

	res := client.Call(cmd.Context(), service, action, payload)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if res.IsError {
		if err := formatter.Error(string(res.ErrorID()), res.Message, res.Data); err != nil {
			return err
		}
		return NewExitError(ExitFailure, res.Message)
	}
	if opts.Format == "json" {
		return formatter.Success(res.Response())
	}
	encoded, err := json.MarshalIndent(res.Response(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
