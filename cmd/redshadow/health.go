package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spark-corp/redshadow/internal/guardian"
)

func buildHealthCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check reachability of every configured LLM provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(resolveConfigPath(configPath), guardian.SessionLocal)
			if err != nil {
				return err
			}
			defer func() { _ = a.shutdown(context.Background()) }()

			statuses := a.router.HealthCheck(cmd.Context())

			degraded := false
			for _, status := range statuses {
				if status != "ready" {
					degraded = true
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(statuses); err != nil {
				return err
			}
			if degraded {
				return fmt.Errorf("one or more providers are not ready")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to engagement YAML config")
	return cmd
}
