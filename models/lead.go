package models

import "strings"

// FilterStatus records the single pipeline decision made for a lead.
type FilterStatus string

const (
	StatusExtracted FilterStatus = "extracted"
	StatusClosed    FilterStatus = "closed"
	StatusNoWebsite FilterStatus = "no_website"
	StatusLowRating FilterStatus = "low_rating"
)

// Query is one search to harvest, in input order. Index is 1-based and is
// stamped onto every lead the query produces.
type Query struct {
	SearchTerm string `json:"search_term"`
	Location   string `json:"location"`
	Index      int    `json:"-"`
}

// Label is the human-readable form used in log prefixes.
func (q Query) Label() string {
	return q.SearchTerm + " @ " + q.Location
}

// Term is the full search phrase sent to the feed endpoint.
func (q Query) Term() string {
	return strings.TrimSpace(q.SearchTerm + " " + q.Location)
}

// Candidate holds the fields lifted from a single rendered feed item before
// filtering, dedup and enrichment. BusinessName is the only required field;
// everything else is best-effort and defaults to its zero value.
type Candidate struct {
	BusinessName string  `json:"business_name"`
	Address      string  `json:"address,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Website      string  `json:"website,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	ReviewsCount int     `json:"reviews_count,omitempty"`
	Category     string  `json:"category,omitempty"`
	PriceLevel   string  `json:"price_level,omitempty"`
	PlusCode     string  `json:"plus_code,omitempty"`
	Email        string  `json:"email,omitempty"`
	Closed       bool    `json:"closed"`
}

// Lead is an accepted record: a Candidate annotated with its filter status
// and the provenance of the query that discovered it.
type Lead struct {
	Candidate
	FilterStatus    FilterStatus `json:"filter_status"`
	QuerySearchTerm string       `json:"query_search_term"`
	QueryLocation   string       `json:"query_location"`
	QueryIndex      int          `json:"query_index"`
}

// QueryResult is reported by each harvester run back to the sequencer.
type QueryResult struct {
	Query       Query
	Extracted   int    // leads emitted to the sink
	Discovered  int    // distinct items seen in the feed, pre-pipeline
	DrainReason string // why the harvest stopped
	Err         error  // feed-level failure, nil when harvested (even partially)
}
