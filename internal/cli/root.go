package cli

import (
	"context"
	"os"

	"github.com/minlano/ssg-price-tracker/config"
	"github.com/minlano/ssg-price-tracker/internal/crawler"
	"github.com/minlano/ssg-price-tracker/logger"
	"github.com/minlano/ssg-price-tracker/services/cache"
	"github.com/minlano/ssg-price-tracker/services/notify"
	"github.com/minlano/ssg-price-tracker/services/store"
	"github.com/minlano/ssg-price-tracker/services/tracker"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ssg-price-tracker",
	Short: "Crawl ssg.com listings and track product prices",
	Long: `ssg-price-tracker searches ssg.com product listings, extracts items
with text heuristics and tracks watched products for price drops.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		godotenv.Load()
		logger.Init()
	},
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired services behind every command
type app struct {
	cfg          config.Config
	cache        cache.CacheService
	store        store.Store
	notifier     notify.Notifier
	orchestrator *crawler.Orchestrator
	tracker      *tracker.Tracker
}

// newApp loads configuration and wires all services. The fetcher is shared
// so searches and tracker passes contend for the same permit pool.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	cacheService := cache.Select(&cfg)
	notifier := notify.Select(ctx, &cfg)

	fetcher := crawler.NewFetcher(&cfg)
	extractor := crawler.NewExtractor(crawler.SSGProfile(cfg.SearchURL, cfg.BaseURL))

	return &app{
		cfg:          cfg,
		cache:        cacheService,
		store:        st,
		notifier:     notifier,
		orchestrator: crawler.NewOrchestrator(fetcher, extractor, cacheService, &cfg),
		tracker:      tracker.New(fetcher, extractor, st, notifier, &cfg),
	}, nil
}

// Close releases the app's resources
func (a *app) Close() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
