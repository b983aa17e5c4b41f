package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nile-squad/nile/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(app App, rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and the service catalog",
		Long: `Validate the configuration and the service catalog without serving.

Every problem is reported, not just the first: configuration field
errors, catalog structure errors, and schema compilation errors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(app, rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(app App, opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(app, opts)
	if err != nil {
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			details := make([]string, len(ve.Errors))
			for i, fe := range ve.Errors {
				details[i] = fe.Error()
			}
			_ = formatter.Error("config-invalid", "configuration is invalid", details)
			return NewExitError(ExitFailure, "configuration is invalid")
		}
		return err
	}

	_, cleanup, err := buildExecutor(app, cfg)
	if err != nil {
		_ = formatter.Error("catalog-invalid", err.Error(), nil)
		return NewExitError(ExitFailure, "catalog is invalid")
	}
	defer cleanup()

	return formatter.Success(fmt.Sprintf("configuration and catalog are valid (%s)", cfg.Name))
}
