package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/nomos-run/nomos/internal/model"
)

var dryRunFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&dryRunFile, "dry-run-file", "", "validate a Job/Script pair from a YAML file and exit, without starting the HTTP server")
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a Job/Script pair via a dry run, without starting the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidateFile(cmd.Context(), args[0])
	},
}

// dryRunFileSpec is the YAML shape read by both --dry-run-file and the
// validate subcommand: a Job, an optional inline Script overriding
// job.script_id, and a parameter map — mirroring httpapi's dryRunRequest.
type dryRunFileSpec struct {
	Job        model.Job                       `yaml:"job"`
	Script     *model.Script                   `yaml:"script,omitempty"`
	Parameters map[string]model.ParameterValue `yaml:"parameters,omitempty"`
}

func runValidateFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var spec dryRunFileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}

	result, runErr := d.engine.Run(ctx, spec.Job, spec.Script, spec.Parameters, true)
	if runErr != nil {
		fmt.Printf("invalid: %s\n", runErr)
		return runErr
	}

	fmt.Printf("valid: %d step(s) would run, final status %s\n", len(result.Steps), result.Status)
	return nil
}
