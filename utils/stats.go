package utils

import (
	"sort"

	"github.com/Assadbaloch/Gmaps-scraper/models"
)

type QueryCount struct {
	Label string
	Count int
}

type SummaryStats struct {
	TotalLeads     int
	EmailsFound    int
	WebsitesFound  int
	StatusCounts   map[models.FilterStatus]int
	LeadsPerQuery  []QueryCount
	TopRatedLeads  []*models.Lead
	SkippedQueries int
}

// BuildSummaryStats condenses a finished run into the numbers main prints.
func BuildSummaryStats(leads []*models.Lead, results []models.QueryResult) SummaryStats {
	stats := SummaryStats{
		TotalLeads:   len(leads),
		StatusCounts: make(map[models.FilterStatus]int),
	}

	queryCounts := make(map[string]int)
	queryOrder := make([]string, 0, len(results))
	for _, res := range results {
		label := res.Query.Label()
		queryOrder = append(queryOrder, label)
		queryCounts[label] = 0
		if res.Err != nil {
			stats.SkippedQueries++
		}
	}

	for _, lead := range leads {
		stats.StatusCounts[lead.FilterStatus]++
		if lead.Email != "" {
			stats.EmailsFound++
		}
		if lead.Website != "" {
			stats.WebsitesFound++
		}
		queryCounts[lead.QuerySearchTerm+" @ "+lead.QueryLocation]++
	}

	for _, label := range queryOrder {
		stats.LeadsPerQuery = append(stats.LeadsPerQuery, QueryCount{Label: label, Count: queryCounts[label]})
	}

	topRated := make([]*models.Lead, len(leads))
	copy(topRated, leads)
	sort.Slice(topRated, func(i, j int) bool {
		if topRated[i].Rating == topRated[j].Rating {
			return topRated[i].ReviewsCount > topRated[j].ReviewsCount
		}
		return topRated[i].Rating > topRated[j].Rating
	})
	if len(topRated) > 5 {
		topRated = topRated[:5]
	}
	stats.TopRatedLeads = topRated

	return stats
}
