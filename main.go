package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikandro/smartfamilytravelscout-sub001/config"
	"github.com/mikandro/smartfamilytravelscout-sub001/dedup"
	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/orchestrator"
	"github.com/mikandro/smartfamilytravelscout-sub001/quota"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper/airbnb"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper/booking"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper/ryanair"
	"github.com/mikandro/smartfamilytravelscout-sub001/services"
	"github.com/mikandro/smartfamilytravelscout-sub001/storage"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

type cliFlags struct {
	origin       string
	destination  string
	departDate   string
	returnDate   string
	adults       int
	childrenAges []int
	skipDB       bool
	verbose      bool
}

func main() {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "travelscout",
		Short: "Collect family travel deals from flight and accommodation sites",
		Long: `travelscout runs every enabled source adapter against one search,
deduplicates the results across sources, and stores the winning deals in
PostgreSQL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}

	rootCmd.Flags().StringVar(&flags.origin, "origin", "", "origin airport IATA code, e.g. DUB (required)")
	rootCmd.Flags().StringVar(&flags.destination, "destination", "", "destination city or airport code (required)")
	rootCmd.Flags().StringVar(&flags.departDate, "depart", "", "departure date, YYYY-MM-DD (required)")
	rootCmd.Flags().StringVar(&flags.returnDate, "return", "", "return date, YYYY-MM-DD (required)")
	rootCmd.Flags().IntVar(&flags.adults, "adults", 2, "number of adults")
	rootCmd.Flags().IntSliceVar(&flags.childrenAges, "child-age", nil, "child age, repeatable")
	rootCmd.Flags().BoolVar(&flags.skipDB, "skip-db", false, "skip PostgreSQL persistence")
	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	for _, name := range []string{"origin", "destination", "depart", "return"} {
		if err := rootCmd.MarkFlagRequired(name); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *cliFlags) error {
	logger := utils.NewLogger(flags.verbose)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	req, err := buildRequest(flags)
	if err != nil {
		return err
	}

	enabled := cfg.Enabled()
	if len(enabled) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	logger.Info("=== Family Travel Scout starting ===")
	logger.Info("Search: %s → %s, %s to %s, %d adults + %d children",
		req.Origin, req.Destination,
		flags.departDate, flags.returnDate, req.Party.Adults, req.Party.Children())
	logger.Info("Sources: %s | concurrency: %d", joinSources(enabled), cfg.MaxConcurrency)

	quotaStore := quota.NewFileStore(cfg.QuotaFile, cfg.MaxDaily(), logger)

	sessions := scraper.SessionFactory(func(source models.Source) (scraper.Session, error) {
		return scraper.NewChromeSession(scraper.SessionConfig{
			Source:      source,
			Headless:    cfg.Headless,
			ChromeBin:   cfg.ChromeBin,
			ArtifactDir: cfg.ArtifactDir,
			Logger:      logger,
		})
	})

	var managed *airbnb.ManagedClient
	if cfg.ManagedAPIKey != "" {
		managed = airbnb.NewManagedClient(cfg.ManagedEndpoint, cfg.ManagedAPIKey)
	}

	var scrapers []scraper.Scraper
	for _, src := range enabled {
		switch src {
		case models.SourceRyanair:
			scrapers = append(scrapers, ryanair.New(quotaStore, sessions, logger))
		case models.SourceBooking:
			scrapers = append(scrapers, booking.New(quotaStore, sessions, logger))
		case models.SourceAirbnb:
			scrapers = append(scrapers, airbnb.New(quotaStore, sessions, managed, logger))
		}
	}

	orch := orchestrator.New(scrapers, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.MaxRetries, logger)
	batch := orch.Run(context.Background(), req)

	if len(batch.Records) == 0 {
		logger.Error("No records collected from any source")
		for _, f := range batch.Failures {
			logger.Error("  [%s] %s: %s", f.Source, f.Kind, f.Message)
		}
		return fmt.Errorf("all sources failed")
	}

	deduper := dedup.New(logger)
	deduper.BucketSize = float64(cfg.DedupPriceBucket)
	deduper.NamePrefixLen = cfg.DedupNamePrefixLen
	deduped := deduper.Deduplicate(batch.Records)

	reportSvc := services.NewReportService(logger)
	reportSvc.Print(reportSvc.Generate(batch, deduped))

	if csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath); err != nil {
		logger.Warn("CSV snapshot unavailable: %v", err)
	} else {
		if err := csvWriter.Dump(deduped); err != nil {
			logger.Warn("CSV write failed: %v", err)
		} else {
			logger.Info("Snapshot saved to %s", cfg.CSVOutputPath)
		}
		csvWriter.Close()
	}

	if flags.skipDB {
		logger.Info("Skipping PostgreSQL persistence (--skip-db)")
		return nil
	}

	pgWriter, err := storage.NewPostgresWriter(cfg.DSN(), logger)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer pgWriter.Close()

	job := models.NewScrapeJob("travel_deals", joinSources(enabled))
	stats, err := pgWriter.Save(deduped, job)
	if err != nil {
		return fmt.Errorf("persist listings: %w", err)
	}

	logger.Info("Done in %s — %d unique deals stored (%d new, %d improved)",
		batch.Elapsed.Round(time.Millisecond), stats.Inserted+stats.Updated, stats.Inserted, stats.Updated)
	return nil
}

// buildRequest turns CLI flags into a search request. Date parsing happens
// here; semantic validation is each adapter's job.
func buildRequest(flags *cliFlags) (models.SearchRequest, error) {
	depart, err := time.Parse("2006-01-02", flags.departDate)
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("invalid --depart %q: expected YYYY-MM-DD", flags.departDate)
	}
	ret, err := time.Parse("2006-01-02", flags.returnDate)
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("invalid --return %q: expected YYYY-MM-DD", flags.returnDate)
	}

	return models.SearchRequest{
		Origin:      flags.origin,
		Destination: flags.destination,
		Window:      models.DateWindow{Depart: depart, Return: ret},
		Party: models.Party{
			Adults:       flags.adults,
			ChildrenAges: flags.childrenAges,
		},
	}, nil
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
