// Package main provides the CLI entry point for the agent sidecar.
//
// The sidecar drives a ReAct loop between LLM providers and HTTP-routed
// tools, layering a verifier pipeline, HITL pause/resume, and per-agent
// preference resolution on top. See internal/api for the HTTP surface.
//
// # Basic Usage
//
// Start the server:
//
//	sidecar serve --config sidecar.yaml
//
// Validate a configuration file without starting anything:
//
//	sidecar config validate --config sidecar.yaml
//
// Initialize configured storage backends (idempotent schema creation):
//
//	sidecar migrate --config sidecar.yaml
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY/GEMINI_API_KEY,
//     DEEPSEEK_API_KEY: provider credentials, looked up by
//     internal/resolver.APIKeyForProvider at request time.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sidecar",
		Short:        "Multi-tenant agent sidecar",
		Long:         "Runs the HTTP sidecar that drives per-tenant ReAct loops against pluggable LLM providers and HTTP-routed tools.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildMigrateCmd(), buildConfigCmd())
	return rootCmd
}
