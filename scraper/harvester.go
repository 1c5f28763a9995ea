package scraper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Assadbaloch/Gmaps-scraper/models"
	"github.com/Assadbaloch/Gmaps-scraper/pipeline"
	"github.com/Assadbaloch/Gmaps-scraper/sink"
)

// The feed gives no reliable completion contract, so three independent
// triggers bound each harvest: the explicit end marker, a run of iterations
// that surface nothing new, and a hard iteration cap.
const (
	stallThreshold = 5
	maxIterations  = 100
)

// Drain reasons reported in the per-query result.
const (
	DrainEndOfList    = "end_of_list"
	DrainStalled      = "stalled"
	DrainIterationCap = "iteration_cap"
	DrainBudget       = "budget_exceeded"
	DrainResultLimit  = "result_limit"
	DrainFeedLoad     = "feed_load_failed"
)

type state int

const (
	stateInit state = iota
	stateLoading
	stateActive
	stateDrained
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateLoading:
		return "loading"
	case stateActive:
		return "active"
	case stateDrained:
		return "drained"
	}
	return "unknown"
}

// Enricher augments a record with an email discovered on its website.
// Best-effort: "" means none found.
type Enricher interface {
	Enrich(website string) string
}

// Options are the knobs the harvester takes from config.
type Options struct {
	ScrollDelay        time.Duration
	FallbackDelay      time.Duration
	NavigationRetries  int
	RetryBackoff       time.Duration
	MaxResultsPerQuery int
	StrictFiltering    bool
}

// Harvester drives the scroll/extract loop for a single query. Items flow
// through dedup, filter classification and enrichment before landing in the
// sink. Per-query state (cursor, counters) dies with the run; only the dedup
// index is shared across queries.
type Harvester struct {
	feed      Feed
	extractor Extractor
	enricher  Enricher
	filters   pipeline.Filters
	index     *pipeline.Index
	out       sink.Sink
	opts      Options
	log       *zap.SugaredLogger

	state     state
	seen      map[string]struct{}
	stall     int
	iteration int
	extracted int
}

func NewHarvester(
	feed Feed,
	extractor Extractor,
	enricher Enricher,
	filters pipeline.Filters,
	index *pipeline.Index,
	out sink.Sink,
	opts Options,
	log *zap.SugaredLogger,
) *Harvester {
	return &Harvester{
		feed:      feed,
		extractor: extractor,
		enricher:  enricher,
		filters:   filters,
		index:     index,
		out:       out,
		opts:      opts,
		log:       log,
	}
}

// State reports the harvester's current lifecycle phase.
func (h *Harvester) State() string {
	return h.state.String()
}

// Run harvests one query to exhaustion and reports what it extracted.
// Feed-load failure is the only error it returns; everything that goes wrong
// past that point is absorbed and the partial result stands.
func (h *Harvester) Run(ctx context.Context, q models.Query) models.QueryResult {
	h.state = stateInit
	h.seen = make(map[string]struct{})
	h.stall, h.iteration, h.extracted = 0, 0, 0

	if err := h.open(ctx, q); err != nil {
		h.state = stateDrained
		h.log.Warnf("[%s] ✗ %v", q.Label(), err)
		return models.QueryResult{Query: q, DrainReason: DrainFeedLoad, Err: err}
	}

	reason := h.drainFeed(ctx, q)
	h.state = stateDrained

	return models.QueryResult{
		Query:       q,
		Extracted:   h.extracted,
		Discovered:  len(h.seen),
		DrainReason: reason,
	}
}

// open navigates to the feed endpoint, retrying transport-level failures a
// bounded number of times. Render failure after the last attempt means the
// query is skipped, not the run aborted.
func (h *Harvester) open(ctx context.Context, q models.Query) error {
	h.state = stateLoading

	retries := h.opts.NavigationRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = h.feed.Open(ctx, q); err == nil {
			return nil
		}
		// Retrying cannot help a page that loaded but never grew a feed.
		if errors.Is(err, ErrFeedNotRendered) || ctx.Err() != nil {
			return err
		}
		if attempt < retries {
			h.log.Warnf("[%s] ⚠ open attempt %d/%d: %v", q.Label(), attempt, retries, err)
			sleep(ctx, time.Duration(attempt)*h.opts.RetryBackoff)
		}
	}
	return err
}

// drainFeed is the ACTIVE loop: probe the end marker, process newly-visible
// items, account for stalls, scroll, repeat.
func (h *Harvester) drainFeed(ctx context.Context, q models.Query) string {
	h.state = stateActive

	for {
		if ctx.Err() != nil {
			return DrainBudget
		}

		if done, err := h.feed.EndReached(ctx); err == nil && done {
			h.log.Infof("[%s] end of list after %d iterations", q.Label(), h.iteration)
			return DrainEndOfList
		}

		fresh := h.freshItems(ctx)
		for _, item := range fresh {
			h.processItem(ctx, item, q)
			if h.opts.MaxResultsPerQuery > 0 && h.extracted >= h.opts.MaxResultsPerQuery {
				return DrainResultLimit
			}
		}

		if len(fresh) == 0 {
			h.stall++
			if h.stall >= stallThreshold {
				h.log.Infof("[%s] no new results after %d attempts, presuming exhausted", q.Label(), h.stall)
				return DrainStalled
			}
		} else {
			h.stall = 0
		}

		grew, err := h.feed.Advance(ctx)
		if err != nil {
			h.log.Warnf("[%s] ⚠ scroll: %v", q.Label(), err)
		}
		sleep(ctx, h.opts.ScrollDelay)
		if !grew {
			sleep(ctx, h.opts.FallbackDelay)
		}

		h.iteration++
		if h.iteration >= maxIterations {
			h.log.Warnf("[%s] iteration cap reached, forcing drain", q.Label())
			return DrainIterationCap
		}
	}
}

// freshItems enumerates rendered cards and keeps the ones this run has not
// processed yet, advancing the cursor.
func (h *Harvester) freshItems(ctx context.Context) []Item {
	items, err := h.feed.Items(ctx)
	if err != nil {
		h.log.Warnf("⚠ enumerate items: %v", err)
		return nil
	}

	var fresh []Item
	for _, item := range items {
		if _, ok := h.seen[item.ID]; ok {
			continue
		}
		h.seen[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}

// processItem runs one item through extraction, dedup, filter classification
// and enrichment, then emits the lead. In the default annotate mode a
// filtered-out record is still emitted with its status; with strict
// filtering it is gated out before it can claim a dedup slot.
func (h *Harvester) processItem(ctx context.Context, item Item, q models.Query) {
	cand, ok := h.extractor.Extract(ctx, item)
	if !ok {
		return
	}

	var status models.FilterStatus
	if h.opts.StrictFiltering {
		status = h.filters.Classify(cand)
		if status != models.StatusExtracted {
			return
		}
		if !h.index.Claim(cand) {
			return
		}
	} else {
		// A dedup hit short-circuits everything: no classification, no
		// enrichment, no emission.
		if !h.index.Claim(cand) {
			return
		}
		status = h.filters.Classify(cand)
	}

	if status == models.StatusExtracted && cand.Website != "" {
		cand.Email = h.enricher.Enrich(cand.Website)
	}

	lead := &models.Lead{
		Candidate:       *cand,
		FilterStatus:    status,
		QuerySearchTerm: q.SearchTerm,
		QueryLocation:   q.Location,
		QueryIndex:      q.Index,
	}
	if err := h.out.Append(lead); err != nil {
		h.log.Errorf("[%s] ✗ sink append %q: %v", q.Label(), cand.BusinessName, err)
		return
	}

	h.extracted++
	h.log.Infof("[%s] + %s (%s)", q.Label(), cand.BusinessName, status)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
