package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/CareRouter/internal/api"
	"github.com/BTreeMap/CareRouter/internal/config"
	"github.com/BTreeMap/CareRouter/internal/messaging"
	"github.com/BTreeMap/CareRouter/internal/scheduler"
	"github.com/BTreeMap/CareRouter/internal/store"
)

var serveFlags struct {
	apiAddr     string
	backend     string
	databaseURL string
	labTest     bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the WhatsApp webhook",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.apiAddr, "api-addr", "", "API server address (overrides $API_ADDR)")
	serveCmd.Flags().StringVar(&serveFlags.backend, "backend", "", "generation backend: openai, gemini or none (overrides $CARE_BACKEND)")
	serveCmd.Flags().StringVar(&serveFlags.databaseURL, "database-url", "", "conversation record database (overrides $DATABASE_URL)")
	serveCmd.Flags().BoolVar(&serveFlags.labTest, "lab-test-handler", false, "enable the dedicated lab test handler (overrides $CARE_LAB_TEST_HANDLER)")
}

// applyServeFlags copies explicitly set serve flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("api-addr") {
		cfg.APIAddr = serveFlags.apiAddr
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = serveFlags.backend
	}
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL = serveFlags.databaseURL
	}
	if cmd.Flags().Changed("lab-test-handler") {
		cfg.LabTestHandler = serveFlags.labTest
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	if err := initializeLogger(os.Stdout, cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	apiOpts, err := buildAPIOptions(a)
	if err != nil {
		return err
	}
	server := api.NewServer(a.manager, apiOpts...)

	sched := scheduler.NewScheduler()
	if err := scheduleRetention(sched, a); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.recorder.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })

	slog.Info("Bootstrapping CareRouter", "api_addr", cfg.APIAddr, "twilio_enabled", cfg.TwilioEnabled())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("CareRouter failed to run", "error", err)
		return err
	}
	slog.Info("CareRouter exited successfully")
	return nil
}

// scheduleRetention registers the record pruning job when a retention window is set.
func scheduleRetention(sched *scheduler.Scheduler, a *app) error {
	if a.cfg.RecordRetention <= 0 {
		slog.Debug("scheduleRetention: record retention disabled")
		return nil
	}
	pruner, err := store.NewPruner(a.records, a.cfg.RecordRetention, store.WithOnPruned(a.metrics.RecordsPruned))
	if err != nil {
		return err
	}
	return sched.AddJob("prune-records", a.cfg.PruneSchedule, func(ctx context.Context) error {
		_, err := pruner.Prune(ctx)
		return err
	})
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(a *app) ([]api.Option, error) {
	cfg := a.cfg
	opts := []api.Option{
		api.WithAddr(cfg.APIAddr),
		api.WithMetrics(a.metrics),
		api.WithGatherer(a.registry),
	}
	if cfg.TwilioEnabled() {
		sender, err := messaging.NewTwilioSender(
			messaging.WithAccountSID(cfg.TwilioAccountSID),
			messaging.WithAuthToken(cfg.TwilioAuthToken),
			messaging.WithFrom(cfg.TwilioFrom),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithSender(sender))
	}
	if cfg.TwilioAuthToken != "" {
		opts = append(opts, api.WithValidator(messaging.NewValidator(cfg.TwilioAuthToken, cfg.TwilioWebhookURL)))
	} else {
		slog.Warn("buildAPIOptions: TWILIO_AUTH_TOKEN not set, webhook signatures are not verified")
	}
	return opts, nil
}
