package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/Assadbaloch/Gmaps-scraper/config"
	"github.com/Assadbaloch/Gmaps-scraper/models"
)

// ErrFeedNotRendered means the result container never materialized. Unlike
// transport failures this is not retried: the query is skipped outright.
var ErrFeedNotRendered = errors.New("feed container never rendered")

// Item is one rendered feed card. ID is the place URL, stable across
// re-renders, and is what the harvester's cursor tracks.
type Item struct {
	ID       string `json:"url"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
	Rating   string `json:"rating"`
	Reviews  string `json:"reviews"`
	Price    string `json:"price"`
	Text     string `json:"text"`
}

// Feed abstracts the live result listing so the harvester can be exercised
// against a fake in tests.
type Feed interface {
	// Open navigates to the query's feed endpoint and waits for the result
	// container to render. Failure means the query is skipped.
	Open(ctx context.Context, q models.Query) error
	// EndReached probes for the explicit end-of-results marker.
	EndReached(ctx context.Context) (bool, error)
	// Items enumerates the currently-rendered cards.
	Items(ctx context.Context) ([]Item, error)
	// Advance requests more content and reports whether the feed grew.
	Advance(ctx context.Context) (bool, error)
}

// MapsFeed drives the Google Maps search feed through a chromedp tab.
type MapsFeed struct {
	cfg        config.Config
	lastHeight int
}

func NewMapsFeed(cfg config.Config) *MapsFeed {
	return &MapsFeed{cfg: cfg}
}

// SearchURL builds the deterministic feed endpoint for a query.
func SearchURL(q models.Query, language string) string {
	return fmt.Sprintf("https://www.google.com/maps/search/%s?hl=%s",
		url.QueryEscape(q.Term()), url.QueryEscape(language))
}

func (f *MapsFeed) Open(ctx context.Context, q models.Query) error {
	f.lastHeight = 0
	searchURL := SearchURL(q, f.cfg.Language)

	if err := chromedp.Run(ctx,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(consentScript, nil),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", searchURL, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.FeedLoadTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx,
		chromedp.WaitVisible(FeedSelector, chromedp.ByQuery),
		chromedp.Sleep(f.cfg.RandomDelay()),
	); err != nil {
		return fmt.Errorf("%w for %q: %v", ErrFeedNotRendered, q.Term(), err)
	}
	return nil
}

func (f *MapsFeed) EndReached(ctx context.Context) (bool, error) {
	var done bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(endScript, &done)); err != nil {
		return false, fmt.Errorf("probe end marker: %w", err)
	}
	return done, nil
}

func (f *MapsFeed) Items(ctx context.Context) ([]Item, error) {
	var rawJSON string
	if err := chromedp.Run(ctx, chromedp.Evaluate(cardsScript, &rawJSON)); err != nil {
		return nil, fmt.Errorf("enumerate cards: %w", err)
	}
	if strings.TrimSpace(rawJSON) == "" {
		return nil, nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(rawJSON), &items); err != nil {
		return nil, fmt.Errorf("decode cards payload: %w", err)
	}
	return items, nil
}

func (f *MapsFeed) Advance(ctx context.Context) (bool, error) {
	var height int
	if err := chromedp.Run(ctx, chromedp.Evaluate(scrollScript, &height)); err != nil {
		return false, fmt.Errorf("scroll feed: %w", err)
	}

	grew := height > f.lastHeight
	if height > 0 {
		f.lastHeight = height
	}
	return grew, nil
}
