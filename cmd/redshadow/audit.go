package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spark-corp/redshadow/internal/guardian"
)

// buildAuditCmd exposes the Guardian's evaluate step directly, so an
// operator can dry-run a candidate command against the configured safety
// policy without spinning up an engagement.
func buildAuditCmd() *cobra.Command {
	var configPath string
	var remote bool

	cmd := &cobra.Command{
		Use:   "audit [command]",
		Short: "Evaluate a candidate command against the Guardian policy without executing it",
		Long: `audit runs the Guardian's evaluate step in isolation: given a command
(as an argument, or one per line on stdin), it prints the resulting
Validation — allowed, risk level, and the reasons behind it — without ever
dispatching the command to a tool server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(resolveConfigPath(configPath), sessionKind(remote))
			if err != nil {
				return err
			}
			defer func() { _ = a.shutdown(context.Background()) }()

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				return printValidation(out, a.guard, args[0], sessionKind(remote))
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				command := scanner.Text()
				if command == "" {
					continue
				}
				if err := printValidation(out, a.guard, command, sessionKind(remote)); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to engagement YAML config")
	cmd.Flags().BoolVar(&remote, "remote", true, "Evaluate as a remote-engagement command (false for local-host commands)")
	return cmd
}

func sessionKind(remote bool) guardian.SessionKind {
	if remote {
		return guardian.SessionRemote
	}
	return guardian.SessionLocal
}

func printValidation(out io.Writer, g *guardian.Guardian, command string, kind guardian.SessionKind) error {
	v := g.Evaluate(command, kind)
	result := struct {
		Command string              `json:"command"`
		guardian.Validation
	}{Command: command, Validation: v}

	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
