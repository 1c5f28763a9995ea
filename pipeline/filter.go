package pipeline

import "github.com/Assadbaloch/Gmaps-scraper/models"

// Filters classifies candidates. Predicates run in a fixed order and the
// first match wins; a candidate matching none is "extracted".
type Filters struct {
	SkipClosedPlaces bool
	RequireWebsite   bool
	MinRating        *float64
}

// Classify returns the single filter status for a candidate.
func (f Filters) Classify(c *models.Candidate) models.FilterStatus {
	switch {
	case f.SkipClosedPlaces && c.Closed:
		return models.StatusClosed
	case f.RequireWebsite && c.Website == "":
		return models.StatusNoWebsite
	case f.MinRating != nil && (c.Rating == 0 || c.Rating < *f.MinRating):
		return models.StatusLowRating
	default:
		return models.StatusExtracted
	}
}
