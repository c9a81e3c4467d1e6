package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgehq/sidecar/internal/config"
)

// runConfigValidate loads and validates configPath, printing every issue a
// ConfigValidationError collected in one pass.
func runConfigValidate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, err := config.Load(configPath)
	if err == nil {
		fmt.Fprintf(out, "%s is valid\n", configPath)
		return nil
	}

	var validationErr *config.ConfigValidationError
	if errors.As(err, &validationErr) {
		fmt.Fprintf(out, "%s has %d issue(s):\n", configPath, len(validationErr.Issues))
		for _, issue := range validationErr.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
		return fmt.Errorf("config validation failed")
	}

	return err
}
