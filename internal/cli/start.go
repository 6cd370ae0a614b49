package cli

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quiz-arena-service/internal/config"
	"quiz-arena-service/internal/jobs"
	transport "quiz-arena-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and WebSocket server with background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	server := transport.NewServer(net.JoinHostPort("", cfg.Server.Port), transport.NewRouter(d.services(), logger), logger)
	tasks := []func(context.Context) error{
		server.Run,
		func(ctx context.Context) error {
			<-ctx.Done()
			logger.Info("shutting down http server")
			return server.Shutdown(context.Background())
		},
		d.ranks.Run,
	}

	if cfg.Schedule.Enabled {
		sched, err := jobs.New(jobs.Specs{
			DailyReset:    cfg.Schedule.DailyReset,
			WeeklyReset:   cfg.Schedule.WeeklyReset,
			MonthlyReset:  cfg.Schedule.MonthlyReset,
			RankRecompute: cfg.Schedule.RankRecompute,
		}, d.loc, d.ledger, d.ranks, logger)
		if err != nil {
			return err
		}
		logger.Info("scheduler configured", "jobs", sched.Jobs())
		tasks = append(tasks, sched.Run)
	}

	// Seed the board before live subscribers connect.
	if _, err := d.ranks.RecomputeGlobalRanks(ctx); err != nil {
		logger.Warn("initial rank recompute failed", "error", err)
	}

	err = runGroup(ctx, tasks...)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
