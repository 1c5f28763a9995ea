package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Assadbaloch/Gmaps-scraper/models"
	"github.com/Assadbaloch/Gmaps-scraper/pipeline"
	"github.com/Assadbaloch/Gmaps-scraper/scraper"
	"github.com/Assadbaloch/Gmaps-scraper/sink"
)

// fakeFeed scripts the visible items per loop iteration. The iteration
// number is driven by Items calls; the last script entry repeats forever.
type fakeFeed struct {
	script    [][]scraper.Item
	endAt     int // EndReached reports true from this Items-call count on; 0 = never
	openErr   error
	openCalls int
	calls     int
}

func (f *fakeFeed) Open(_ context.Context, _ models.Query) error {
	f.openCalls++
	return f.openErr
}

func (f *fakeFeed) EndReached(_ context.Context) (bool, error) {
	return f.endAt > 0 && f.calls >= f.endAt, nil
}

func (f *fakeFeed) Items(_ context.Context) ([]scraper.Item, error) {
	f.calls++
	if len(f.script) == 0 {
		return nil, nil
	}
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	return f.script[idx], nil
}

func (f *fakeFeed) Advance(_ context.Context) (bool, error) {
	return true, nil
}

// growingFeed renders one brand-new item per iteration and never signals
// completion, so only the hard cap can stop the harvest.
type growingFeed struct {
	calls int
}

func (f *growingFeed) Open(_ context.Context, _ models.Query) error { return nil }

func (f *growingFeed) EndReached(_ context.Context) (bool, error) { return false, nil }

func (f *growingFeed) Items(_ context.Context) ([]scraper.Item, error) {
	f.calls++
	return []scraper.Item{item(fmt.Sprintf("place-%d", f.calls))}, nil
}

func (f *growingFeed) Advance(_ context.Context) (bool, error) { return true, nil }

// stubExtractor lifts candidates straight from the card payload, with
// per-item overrides for fields the card cannot carry.
type stubExtractor struct {
	websites map[string]string
	ratings  map[string]float64
}

func (s stubExtractor) Extract(_ context.Context, it scraper.Item) (*models.Candidate, bool) {
	name := strings.TrimSpace(it.Name)
	if name == "" {
		return nil, false
	}
	return &models.Candidate{
		BusinessName: name,
		Address:      it.Address,
		Website:      s.websites[it.ID],
		Rating:       s.ratings[it.ID],
		Closed:       strings.Contains(it.Text, "Permanently closed"),
	}, true
}

type stubEnricher struct {
	emails map[string]string
	calls  []string
}

func (s *stubEnricher) Enrich(website string) string {
	s.calls = append(s.calls, website)
	return s.emails[website]
}

func item(id string) scraper.Item {
	return scraper.Item{ID: id, Name: "Biz " + id, Address: id + " Main St"}
}

func fastOpts() scraper.Options {
	return scraper.Options{NavigationRetries: 1}
}

func newHarvester(t *testing.T, feed scraper.Feed, ex scraper.Extractor, en scraper.Enricher,
	filters pipeline.Filters, index *pipeline.Index, out sink.Sink, opts scraper.Options) *scraper.Harvester {
	t.Helper()
	if ex == nil {
		ex = stubExtractor{}
	}
	if en == nil {
		en = &stubEnricher{}
	}
	if index == nil {
		index = pipeline.NewIndex()
	}
	if out == nil {
		out = sink.NewCollector()
	}
	return scraper.NewHarvester(feed, ex, en, filters, index, out, opts, zap.NewNop().Sugar())
}

func TestStallTermination(t *testing.T) {
	// The same two items render forever; five consecutive empty iterations
	// must drain the harvest well before the iteration cap.
	cards := []scraper.Item{item("a"), item("b")}
	feed := &fakeFeed{script: [][]scraper.Item{cards}}
	out := sink.NewCollector()

	h := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, fastOpts())
	res := h.Run(context.Background(), models.Query{SearchTerm: "dentists", Location: "Austin, TX", Index: 1})

	assert.Equal(t, scraper.DrainStalled, res.DrainReason)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 2, res.Discovered)
	// 1 productive iteration + 5 stalled ones.
	assert.Equal(t, 6, feed.calls)
	assert.Equal(t, "drained", h.State())
}

func TestHardCapTermination(t *testing.T) {
	feed := &growingFeed{}
	out := sink.NewCollector()

	h := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, fastOpts())
	res := h.Run(context.Background(), models.Query{SearchTerm: "cafes", Location: "Berlin", Index: 1})

	assert.Equal(t, scraper.DrainIterationCap, res.DrainReason)
	// Every iteration surfaced something new, so the cap is the only stop:
	// exactly 100 iterations, no earlier, no later.
	assert.Equal(t, 100, feed.calls)
	assert.Equal(t, 100, res.Extracted)
}

func TestEndMarkerTermination(t *testing.T) {
	feed := &fakeFeed{
		script: [][]scraper.Item{{item("a")}, {item("a"), item("b")}},
		endAt:  2,
	}
	out := sink.NewCollector()

	h := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, fastOpts())
	res := h.Run(context.Background(), models.Query{SearchTerm: "bars", Location: "Lisbon", Index: 1})

	assert.Equal(t, scraper.DrainEndOfList, res.DrainReason)
	assert.Equal(t, 2, res.Extracted)
}

func TestDuplicateWithinQuery(t *testing.T) {
	// Third card has a new URL but the same normalized name and address as
	// the first: exactly two records survive.
	dup := scraper.Item{ID: "a2", Name: "  Biz a ", Address: "a  Main St"}
	cards := []scraper.Item{item("a"), item("b"), dup}
	feed := &fakeFeed{script: [][]scraper.Item{cards}, endAt: 2}
	out := sink.NewCollector()

	h := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, fastOpts())
	res := h.Run(context.Background(), models.Query{SearchTerm: "dentists", Location: "Austin, TX", Index: 1})

	require.Len(t, out.Leads, 2)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 3, res.Discovered)
	for _, lead := range out.Leads {
		assert.Equal(t, 1, lead.QueryIndex)
	}
}

func TestCrossQueryDedup(t *testing.T) {
	index := pipeline.NewIndex()
	out := sink.NewCollector()

	q1 := models.Query{SearchTerm: "dentists", Location: "Austin", Index: 1}
	feed1 := &fakeFeed{script: [][]scraper.Item{{item("a"), item("b")}}, endAt: 2}
	newHarvester(t, feed1, nil, nil, pipeline.Filters{}, index, out, fastOpts()).Run(context.Background(), q1)

	// Second query rediscovers "b" under a different URL plus a new place.
	bAgain := scraper.Item{ID: "b-other-url", Name: "Biz b", Address: "b Main St"}
	q2 := models.Query{SearchTerm: "dentists", Location: "Round Rock", Index: 2}
	feed2 := &fakeFeed{script: [][]scraper.Item{{bAgain, item("c")}}, endAt: 2}
	res2 := newHarvester(t, feed2, nil, nil, pipeline.Filters{}, index, out, fastOpts()).Run(context.Background(), q2)

	require.Len(t, out.Leads, 3)
	assert.Equal(t, 1, res2.Extracted)

	// First occurrence by query order wins, and query_index never decreases.
	names := make(map[string]int)
	last := 0
	for _, lead := range out.Leads {
		names[lead.BusinessName] = lead.QueryIndex
		assert.GreaterOrEqual(t, lead.QueryIndex, last)
		last = lead.QueryIndex
	}
	assert.Equal(t, 1, names["Biz b"])
	assert.Equal(t, 2, names["Biz c"])
}

func TestClosedAnnotatedNotDropped(t *testing.T) {
	closed := scraper.Item{ID: "x", Name: "Biz x", Address: "x Main St", Text: "Permanently closed"}
	index := pipeline.NewIndex()
	out := sink.NewCollector()
	filters := pipeline.Filters{SkipClosedPlaces: true}

	q1 := models.Query{SearchTerm: "diners", Location: "Reno", Index: 1}
	feed1 := &fakeFeed{script: [][]scraper.Item{{closed}}, endAt: 2}
	newHarvester(t, feed1, nil, nil, filters, index, out, fastOpts()).Run(context.Background(), q1)

	require.Len(t, out.Leads, 1)
	assert.Equal(t, models.StatusClosed, out.Leads[0].FilterStatus)

	// The closed record still occupies its dedup slot: a later query seeing
	// the same place (now without the closure banner) is rejected.
	reopened := scraper.Item{ID: "x-again", Name: "Biz x", Address: "x Main St"}
	q2 := models.Query{SearchTerm: "diners", Location: "Sparks", Index: 2}
	feed2 := &fakeFeed{script: [][]scraper.Item{{reopened}}, endAt: 2}
	res2 := newHarvester(t, feed2, nil, nil, filters, index, out, fastOpts()).Run(context.Background(), q2)

	assert.Equal(t, 0, res2.Extracted)
	assert.Len(t, out.Leads, 1)
}

func TestNoWebsiteSkipsEnrichment(t *testing.T) {
	feed := &fakeFeed{script: [][]scraper.Item{{item("a")}}, endAt: 2}
	enricher := &stubEnricher{emails: map[string]string{"https://biz-a.com": "hi@biz-a.com"}}
	out := sink.NewCollector()
	filters := pipeline.Filters{RequireWebsite: true}

	h := newHarvester(t, feed, stubExtractor{}, enricher, filters, nil, out, fastOpts())
	h.Run(context.Background(), models.Query{SearchTerm: "gyms", Location: "Oslo", Index: 1})

	require.Len(t, out.Leads, 1)
	assert.Equal(t, models.StatusNoWebsite, out.Leads[0].FilterStatus)
	assert.Empty(t, out.Leads[0].Email)
	assert.Empty(t, enricher.calls)
}

func TestEnrichmentFillsEmail(t *testing.T) {
	feed := &fakeFeed{script: [][]scraper.Item{{item("a")}}, endAt: 2}
	ex := stubExtractor{websites: map[string]string{"a": "https://biz-a.com"}}
	enricher := &stubEnricher{emails: map[string]string{"https://biz-a.com": "hi@biz-a.com"}}
	out := sink.NewCollector()

	h := newHarvester(t, feed, ex, enricher, pipeline.Filters{}, nil, out, fastOpts())
	h.Run(context.Background(), models.Query{SearchTerm: "gyms", Location: "Oslo", Index: 1})

	require.Len(t, out.Leads, 1)
	assert.Equal(t, "hi@biz-a.com", out.Leads[0].Email)
	assert.Equal(t, []string{"https://biz-a.com"}, enricher.calls)
}

func TestStrictFilteringGatesBeforeDedup(t *testing.T) {
	minRating := 4.0
	filters := pipeline.Filters{MinRating: &minRating}
	index := pipeline.NewIndex()
	out := sink.NewCollector()

	// Low-rated occurrence is dropped without claiming a slot...
	lowRated := stubExtractor{ratings: map[string]float64{"a": 3.0}}
	feed1 := &fakeFeed{script: [][]scraper.Item{{item("a")}}, endAt: 2}
	opts := fastOpts()
	opts.StrictFiltering = true
	res1 := newHarvester(t, feed1, lowRated, nil, filters, index, out, opts).
		Run(context.Background(), models.Query{SearchTerm: "spas", Location: "Bath", Index: 1})

	assert.Equal(t, 0, res1.Extracted)
	assert.Equal(t, 0, index.Len())

	// ...so the same place can still be accepted by a later query.
	wellRated := stubExtractor{ratings: map[string]float64{"a": 4.5}}
	feed2 := &fakeFeed{script: [][]scraper.Item{{item("a")}}, endAt: 2}
	res2 := newHarvester(t, feed2, wellRated, nil, filters, index, out, opts).
		Run(context.Background(), models.Query{SearchTerm: "spas", Location: "Bristol", Index: 2})

	assert.Equal(t, 1, res2.Extracted)
	require.Len(t, out.Leads, 1)
	assert.Equal(t, models.StatusExtracted, out.Leads[0].FilterStatus)
}

func TestResultLimit(t *testing.T) {
	feed := &growingFeed{}
	out := sink.NewCollector()
	opts := fastOpts()
	opts.MaxResultsPerQuery = 7

	res := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, opts).
		Run(context.Background(), models.Query{SearchTerm: "hotels", Location: "Rome", Index: 1})

	assert.Equal(t, scraper.DrainResultLimit, res.DrainReason)
	assert.Equal(t, 7, res.Extracted)
}

func TestFeedLoadFailureSkipsQuery(t *testing.T) {
	feed := &fakeFeed{openErr: errors.New("feed never rendered")}
	out := sink.NewCollector()
	opts := fastOpts()
	opts.NavigationRetries = 3

	res := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, opts).
		Run(context.Background(), models.Query{SearchTerm: "vets", Location: "Cork", Index: 1})

	assert.Error(t, res.Err)
	assert.Equal(t, scraper.DrainFeedLoad, res.DrainReason)
	assert.Equal(t, 0, res.Extracted)
	assert.Equal(t, 3, feed.openCalls)
	assert.Empty(t, out.Leads)
}

func TestFeedRenderFailureNotRetried(t *testing.T) {
	feed := &fakeFeed{openErr: fmt.Errorf("%w for \"vets Cork\"", scraper.ErrFeedNotRendered)}
	opts := fastOpts()
	opts.NavigationRetries = 3

	res := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, nil, opts).
		Run(context.Background(), models.Query{SearchTerm: "vets", Location: "Cork", Index: 1})

	assert.Error(t, res.Err)
	assert.Equal(t, 1, feed.openCalls, "render failures are skipped, not retried")
}

func TestBudgetExceeded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := &fakeFeed{script: [][]scraper.Item{{item("a")}}}
	res := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, nil, fastOpts()).
		Run(ctx, models.Query{SearchTerm: "shops", Location: "York", Index: 1})

	// Open succeeds (the fake ignores the context); the budget check at the
	// top of the loop fires before any item is processed.
	assert.Equal(t, scraper.DrainBudget, res.DrainReason)
	assert.Equal(t, 0, res.Extracted)
}

func TestMalformedItemSkipped(t *testing.T) {
	nameless := scraper.Item{ID: "ghost"}
	feed := &fakeFeed{script: [][]scraper.Item{{nameless, item("a")}}, endAt: 2}
	out := sink.NewCollector()

	res := newHarvester(t, feed, nil, nil, pipeline.Filters{}, nil, out, fastOpts()).
		Run(context.Background(), models.Query{SearchTerm: "pubs", Location: "Leeds", Index: 1})

	assert.Equal(t, 1, res.Extracted)
	assert.Equal(t, 2, res.Discovered)
	require.Len(t, out.Leads, 1)
	assert.Equal(t, "Biz a", out.Leads[0].BusinessName)
}
