package models

// CategoryCount is one entry of a collection's ordered category tally.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CollectionAnalysis summarises one collection's messages for a report run.
type CollectionAnalysis struct {
	Name           string             `json:"name"`
	LevelCounts    map[EventLevel]int `json:"level_counts"`
	CategoryCounts []CategoryCount    `json:"category_counts"`
}

// NewCollectionAnalysis returns an analysis with every level zero-filled.
func NewCollectionAnalysis(name string) *CollectionAnalysis {
	counts := make(map[EventLevel]int, len(levelRank))
	for _, level := range Levels() {
		counts[level] = 0
	}
	return &CollectionAnalysis{Name: name, LevelCounts: counts}
}

// Count returns the number of messages at level.
func (a CollectionAnalysis) Count(level EventLevel) int {
	return a.LevelCounts[level]
}

// Total returns the number of messages across all levels.
func (a CollectionAnalysis) Total() int {
	total := 0
	for _, n := range a.LevelCounts {
		total += n
	}
	return total
}
