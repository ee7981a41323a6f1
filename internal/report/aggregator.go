// Package report builds the daily digest: it aggregates one UTC day of
// logged events per collection and renders the result as CSV and HTML.
package report

import (
	"sort"

	"sigevent-service/internal/models"
)

// AnalyzeMessages groups messages by collection and counts levels and
// categories. Collections are ordered by (ERROR, WARN, INFO, DEBUG) counts
// descending and categories by count descending; ties keep first-seen order.
func AnalyzeMessages(messages []models.EventMessage) []models.CollectionAnalysis {
	var order []*models.CollectionAnalysis
	byName := make(map[string]*models.CollectionAnalysis)
	categoryIndex := make(map[string]map[string]int)

	for _, msg := range messages {
		analysis, ok := byName[msg.CollectionName]
		if !ok {
			analysis = models.NewCollectionAnalysis(msg.CollectionName)
			byName[msg.CollectionName] = analysis
			categoryIndex[msg.CollectionName] = make(map[string]int)
			order = append(order, analysis)
		}

		analysis.LevelCounts[msg.EventLevel]++

		idx := categoryIndex[msg.CollectionName]
		if i, seen := idx[msg.Category]; seen {
			analysis.CategoryCounts[i].Count++
		} else {
			idx[msg.Category] = len(analysis.CategoryCounts)
			analysis.CategoryCounts = append(analysis.CategoryCounts, models.CategoryCount{Category: msg.Category, Count: 1})
		}
	}

	result := make([]models.CollectionAnalysis, 0, len(order))
	for _, analysis := range order {
		cats := analysis.CategoryCounts
		sort.SliceStable(cats, func(i, j int) bool { return cats[i].Count > cats[j].Count })
		result = append(result, *analysis)
	}
	sort.SliceStable(result, func(i, j int) bool { return moreSevere(result[i], result[j]) })
	return result
}

func moreSevere(a, b models.CollectionAnalysis) bool {
	for _, level := range models.Levels() {
		if a.Count(level) != b.Count(level) {
			return a.Count(level) > b.Count(level)
		}
	}
	return false
}
