// Package main provides the CLI entry point for the redshadow agent
// execution fabric: a Team Lead that decomposes a pentest objective into a
// task graph, spawns ReAct worker agents over an LLM Router, and dispatches
// their tool calls through a Guardian-checked Tool Bridge.
//
// # Basic usage
//
// Run an engagement:
//
//	redshadow engage "assess 10.0.0.5 for exposed services" --config engagement.yaml
//
// Check provider reachability:
//
//	redshadow health --config engagement.yaml
//
// # Environment variables
//
//   - REDSHADOW_CONFIG: path to the engagement config (default: engagement.yaml)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: provider credentials, read by the
//     config loader when a provider entry omits api_key
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
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

// buildRootCmd creates the root command with all subcommands attached,
// separated from main so tests can drive it directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redshadow",
		Short: "redshadow - multi-agent pentest execution fabric",
		Long: `redshadow decomposes a pentest objective into a task graph, runs
ReAct worker agents against an LLM Router, and authorizes every tool call
through a Guardian safety policy before it reaches a tool server.

Supported LLM providers: Anthropic, OpenAI, AWS Bedrock
Built-in tool servers: nmap, nuclei, whois, dig`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildEngageCmd(),
		buildHealthCmd(),
		buildAuditCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("REDSHADOW_CONFIG"); env != "" {
		return env
	}
	return "engagement.yaml"
}
