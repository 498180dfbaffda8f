package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tberndt/worksync/internal/config"
)

// ValidationResult holds configuration validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a YAML configuration file against the embedded schema
without opening the replica store. Faster feedback than running merge.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read configuration", err)
	}
	formatter.VerboseLog("Read %d byte(s) from %s", len(data), path)

	cfg, err := config.Parse(path, data)
	if err != nil {
		var loadErr *config.LoadError
		message := err.Error()
		if errors.As(err, &loadErr) {
			message = loadErr.Message
		}

		if formatter.Format == "json" {
			_ = json.NewEncoder(formatter.Writer).Encode(CLIResponse{
				Status: "error",
				Data:   ValidationResult{Valid: false, Errors: []string{message}},
				Error:  &CLIError{Code: ErrCodeConfig, Message: message},
			})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Configuration invalid")
			fmt.Fprintf(formatter.Writer, "  %s\n", message)
		}
		return WrapExitError(ExitFailure, "configuration invalid", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintln(formatter.Writer, "✓ Configuration valid")
	fmt.Fprintf(formatter.Writer, "  store: %s, entities: %d, lock shards: %d\n",
		cfg.StorePath, len(cfg.Entities), cfg.LockShards)
	return nil
}
