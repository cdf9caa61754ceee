package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/minlano/ssg-price-tracker/logger"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the price tracking daemon",
	Long: `Starts the scheduler: every active watch is re-checked on the
configured interval and history older than the retention window is purged
nightly.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log := logger.Default

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	log.Info().
		Str("environment", app.cfg.Environment).
		Dur("check_interval", app.cfg.CheckInterval).
		Int("max_concurrent_fetches", app.cfg.MaxConcurrentFetches).
		Msg("Starting application")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := app.tracker.Start(ctx); err != nil {
		return err
	}
	defer app.tracker.Stop()

	// Run a first pass immediately instead of waiting a full interval
	go app.tracker.CheckPrices(ctx)

	sig := <-sigChan
	log.Info().
		Str("signal", sig.String()).
		Msg("Received shutdown signal")
	cancel()

	log.Info().Msg("Shutting down gracefully...")
	return nil
}
