package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spark-corp/redshadow/internal/guardian"
	"github.com/spark-corp/redshadow/internal/tasks"
	"github.com/spark-corp/redshadow/internal/teamlead"
)

func buildEngageCmd() *cobra.Command {
	var configPath string
	var remote bool
	var schedule string
	var taskStorePath string

	cmd := &cobra.Command{
		Use:   "engage <objective>",
		Short: "Run an engagement end-to-end: decompose, execute, synthesize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objective := args[0]

			session := guardian.SessionLocal
			if remote {
				session = guardian.SessionRemote
			}

			a, err := newApp(resolveConfigPath(configPath), session)
			if err != nil {
				return err
			}
			defer func() { _ = a.shutdown(context.Background()) }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var queue tasks.Queue
			if taskStorePath != "" {
				queue, err = openDurableQueue(taskStorePath)
				if err != nil {
					return fmt.Errorf("open durable task store: %w", err)
				}
			}
			tl := a.newTeamLead(queue)

			if schedule != "" {
				sched := teamlead.NewScheduler(a.log)
				if _, err := sched.ScheduleReengagement(schedule, tl, objective); err != nil {
					return fmt.Errorf("schedule re-engagement: %w", err)
				}
				sched.Start()
				defer sched.Stop()
			}

			ctx, span := a.tracer.TraceEngagement(ctx, objective)
			defer span.End()

			result, err := tl.Run(ctx, objective)
			if err != nil {
				a.tracer.RecordError(span, err)
				return fmt.Errorf("engagement failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to engagement YAML config")
	cmd.Flags().BoolVar(&remote, "remote", true, "Treat the objective as targeting a remote engagement host (false for local-host assessments)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression to re-run this objective after the first run completes (e.g. \"0 2 * * *\")")
	cmd.Flags().StringVar(&taskStorePath, "task-store", "", "Path to a SQLite file for a durable Task Queue (default: in-memory, lost on restart)")
	return cmd
}
