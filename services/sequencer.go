// Package services wires the per-query harvest runs together.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Assadbaloch/Gmaps-scraper/config"
	"github.com/Assadbaloch/Gmaps-scraper/enrich"
	"github.com/Assadbaloch/Gmaps-scraper/models"
	"github.com/Assadbaloch/Gmaps-scraper/pipeline"
	"github.com/Assadbaloch/Gmaps-scraper/scraper"
	"github.com/Assadbaloch/Gmaps-scraper/sink"
	"github.com/Assadbaloch/Gmaps-scraper/utils"
)

// ValidationError marks malformed input. It is the only error class that
// aborts a run before harvesting starts.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// ValidateQueries fails fast when the query list cannot produce a run.
func ValidateQueries(queries []models.Query) error {
	if len(queries) == 0 {
		return &ValidationError{Reason: "query list is empty"}
	}
	for i, q := range queries {
		if strings.TrimSpace(q.SearchTerm) == "" {
			return &ValidationError{Reason: fmt.Sprintf("query %d has a blank search term", i+1)}
		}
		if strings.TrimSpace(q.Location) == "" {
			return &ValidationError{Reason: fmt.Sprintf("query %d has a blank location", i+1)}
		}
	}
	return nil
}

// HarvestFunc runs one query to exhaustion.
type HarvestFunc func(ctx context.Context, q models.Query) models.QueryResult

// Sequencer processes the query list strictly in order, one fully-drained
// harvest at a time. The feed is stateful per browsing context and output
// provenance must follow input order, so queries are never interleaved. It
// owns the dedup index; the index spans the whole run and is never cleared
// between queries.
type Sequencer struct {
	cfg   config.Config
	out   sink.Sink
	index *pipeline.Index
	log   *zap.SugaredLogger

	// Harvest is replaceable in tests; the default drives a real browser.
	Harvest HarvestFunc
}

func NewSequencer(cfg config.Config, out sink.Sink, log *zap.SugaredLogger) *Sequencer {
	s := &Sequencer{
		cfg:   cfg,
		out:   out,
		index: pipeline.NewIndex(),
		log:   log,
	}
	s.Harvest = s.browserHarvest
	return s
}

// Run validates the input and drains every query in order. A failed query
// yields zero records and does not block the ones after it.
func (s *Sequencer) Run(ctx context.Context) ([]models.QueryResult, error) {
	if err := ValidateQueries(s.cfg.Queries); err != nil {
		return nil, err
	}

	results := make([]models.QueryResult, 0, len(s.cfg.Queries))
	totalExtracted := 0

	for i, q := range s.cfg.Queries {
		q.Index = i + 1
		if ctx.Err() != nil {
			s.log.Warnf("[%s] run cancelled before query %d", q.Label(), q.Index)
			break
		}

		s.log.Infof("[%s] ▶ starting (query %d/%d)", q.Label(), q.Index, len(s.cfg.Queries))

		res := s.Harvest(ctx, q)
		if res.Err != nil {
			s.log.Warnf("[%s] ✗ skipped: %v", q.Label(), res.Err)
		} else {
			s.log.Infof("[%s] ✓ %d extracted, %d discovered (%s)",
				q.Label(), res.Extracted, res.Discovered, res.DrainReason)
		}

		totalExtracted += res.Extracted
		results = append(results, res)
	}

	s.log.Infof("run complete: %d leads extracted, %d places in dedup index",
		totalExtracted, s.index.Len())
	return results, nil
}

// browserHarvest builds the chromedp stack for one query: a fresh allocator
// and tab, the Maps feed, the detail extractor and the homepage enricher,
// all bounded by the per-query budget.
func (s *Sequencer) browserHarvest(ctx context.Context, q models.Query) models.QueryResult {
	allocCtx, cancelAlloc := utils.NewAllocator(ctx, s.cfg)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	queryCtx, cancelQuery := context.WithTimeout(tabCtx, s.cfg.QueryBudget)
	defer cancelQuery()

	harvester := scraper.NewHarvester(
		scraper.NewMapsFeed(s.cfg),
		scraper.NewDetailExtractor(tabCtx, s.cfg, s.log),
		enrich.New(s.cfg.EnrichTimeout, s.cfg.UserAgent, s.cfg.VerifyEmailDomains, s.log),
		pipeline.Filters{
			SkipClosedPlaces: s.cfg.SkipClosedPlaces,
			RequireWebsite:   s.cfg.RequireWebsite,
			MinRating:        s.cfg.MinRating,
		},
		s.index,
		s.out,
		scraper.Options{
			ScrollDelay:        s.cfg.ScrollDelay,
			FallbackDelay:      s.cfg.FallbackDelay,
			NavigationRetries:  s.cfg.NavigationRetries,
			RetryBackoff:       time.Second,
			MaxResultsPerQuery: s.cfg.MaxResultsPerQuery,
			StrictFiltering:    s.cfg.StrictFiltering,
		},
		s.log,
	)

	return harvester.Run(queryCtx, q)
}
