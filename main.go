package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Assadbaloch/Gmaps-scraper/config"
	"github.com/Assadbaloch/Gmaps-scraper/logger"
	"github.com/Assadbaloch/Gmaps-scraper/services"
	"github.com/Assadbaloch/Gmaps-scraper/sink"
	"github.com/Assadbaloch/Gmaps-scraper/storage"
	"github.com/Assadbaloch/Gmaps-scraper/utils"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger isn't up yet; config errors go straight to stderr.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogFile)
	defer log.Sync()

	log.Infof("╔═══════════════════════════════════════════════════╗")
	log.Infof("║        Google Maps Multi-Query Lead Scraper        ║")
	log.Infof("╚═══════════════════════════════════════════════════╝")
	log.Infof("Queries  : %d", len(cfg.Queries))
	log.Infof("Language : %s", cfg.Language)
	log.Infof("Output   : %s", cfg.OutFile)
	if cfg.DBEnabled() {
		log.Infof("Postgres : %s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	if err := services.ValidateQueries(cfg.Queries); err != nil {
		log.Fatalf("✗ %v", err)
	}

	collector := sink.NewCollector()
	jsonl, err := sink.NewJSONLines(cfg.OutFile)
	if err != nil {
		log.Fatalf("✗ Failed to open output file: %v", err)
	}
	sinks := sink.Multi{collector, jsonl}

	if cfg.DBEnabled() {
		store, err := storage.NewPostgresStore(cfg)
		if err != nil {
			log.Fatalf("✗ Failed to connect to PostgreSQL: %v", err)
		}
		sinks = append(sinks, store)
	}
	defer sinks.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancelRun := context.WithTimeout(rootCtx, cfg.GlobalTimeout)
	defer cancelRun()

	sequencer := services.NewSequencer(cfg, sinks, log)
	results, err := sequencer.Run(runCtx)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			log.Fatalf("✗ %v", verr)
		}
		log.Fatalf("✗ Run failed: %v", err)
	}

	stats := utils.BuildSummaryStats(collector.Leads, results)
	log.Infof("═══════════════════════════════════════════════════")
	log.Infof("  DONE — %d leads → %s", stats.TotalLeads, cfg.OutFile)
	for _, r := range results {
		status := "OK"
		if r.Err != nil {
			status = "SKIPPED: " + r.Err.Error()
		}
		log.Infof("    %-30s %d leads (%s) %s", r.Query.Label()+":", r.Extracted, r.DrainReason, status)
	}

	log.Infof("  STATS")
	log.Infof("    Total Leads        : %d", stats.TotalLeads)
	log.Infof("    Emails Found       : %d", stats.EmailsFound)
	log.Infof("    Websites Found     : %d", stats.WebsitesFound)
	log.Infof("    Skipped Queries    : %d", stats.SkippedQueries)
	for status, count := range stats.StatusCounts {
		log.Infof("      %-16s : %d", status, count)
	}

	log.Infof("    Top 5 Rated Leads")
	for i, lead := range stats.TopRatedLeads {
		log.Infof("      %d) %.1f★ (%d reviews) | %s", i+1, lead.Rating, lead.ReviewsCount, lead.BusinessName)
	}
	log.Infof("═══════════════════════════════════════════════════")
}
