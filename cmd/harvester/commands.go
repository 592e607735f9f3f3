package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/marketgrid/harvester/internal/app"
	"github.com/marketgrid/harvester/internal/common"
)

// withApp wraps a command body with application setup and teardown.
func withApp(configFlag *string, run func(ctx context.Context, a *app.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := app.NewApp(*configFlag)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "harvester",
		Short: "Daily trading data collector and monthly price statistics",
		Long: `Harvester ingests daily trading data for every listed security on the
main board and the over-the-counter/emerging board, and computes
per-security monthly price statistics.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path")

	rootCmd.AddCommand(
		newCalendarCmd(&configPath),
		newScheduleCmd(&configPath),
		newSecuritiesCmd(&configPath),
		newExpandCmd(&configPath),
		newFetchCmd(&configPath),
		newAggregateCmd(&configPath),
		newRunCmd(&configPath),
		newDaemonCmd(&configPath),
		newVersionCmd(),
	)
	return rootCmd
}

func newCalendarCmd(configPath *string) *cobra.Command {
	var backfill bool
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Build or extend the trading calendar",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			if backfill {
				_, err := a.Calendar.Backfill(ctx)
				return err
			}
			_, err := a.Calendar.Extend(ctx)
			return err
		}),
	}
	cmd.Flags().BoolVar(&backfill, "backfill", false, "Rebuild from the epoch instead of extending")
	return cmd
}

func newScheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Generate the daily task queue",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			_, err := a.Scheduler.ScheduleDaily(ctx)
			return err
		}),
	}
}

func newSecuritiesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "securities",
		Short: "Sync the security master from the registry",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			_, err := a.Master.Sync(ctx)
			return err
		}),
	}
}

func newExpandCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "expand",
		Short: "Expand securities into monthly fetch tasks",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			_, err := a.TaskGen.Expand(ctx)
			return err
		}),
	}
}

func newFetchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run pending fetch tasks",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			return a.Fetcher.Run(ctx)
		}),
	}
}

func newAggregateCmd(configPath *string) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Promote raw payloads to monthly price statistics",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			p := period
			if p == "" {
				p = a.CurrentPeriod()
			}
			_, err := a.Aggregator.AggregatePeriod(ctx, p)
			return err
		}),
	}
	cmd.Flags().StringVar(&period, "period", "", "Fetch period to aggregate (YYYYMM, default current month)")
	return cmd
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full daily pipeline once",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			return a.RunDaily(ctx)
		}),
	}
}

func newDaemonCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the daily pipeline on the configured cron schedule",
		RunE: withApp(configPath, func(ctx context.Context, a *app.App) error {
			c := cron.New()
			_, err := c.AddFunc(a.Config.Daemon.Schedule, func() {
				if err := a.RunDaily(context.Background()); err != nil {
					a.Logger.Error().Err(err).Msg("Scheduled pipeline run failed")
				}
			})
			if err != nil {
				return fmt.Errorf("invalid daemon schedule %q: %w", a.Config.Daemon.Schedule, err)
			}

			c.Start()
			a.Logger.Info().Str("schedule", a.Config.Daemon.Schedule).Msg("Daemon started")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan

			a.Logger.Info().Msg("Shutdown signal received")
			<-c.Stop().Done()
			return nil
		}),
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(common.GetFullVersion())
		},
	}
}
