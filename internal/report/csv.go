package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"sigevent-service/internal/models"
)

var csvHeader = []string{"Collection Name", "Errors", "Warnings", "Info", "Debug", "Categories"}

// GenerateCSV renders analyses as the digest attachment. The Categories cell
// lists "category: count" pairs separated by newlines.
func GenerateCSV(analyses []models.CollectionAnalysis) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, a := range analyses {
		categories := make([]string, 0, len(a.CategoryCounts))
		for _, c := range a.CategoryCounts {
			categories = append(categories, fmt.Sprintf("%s: %d", c.Category, c.Count))
		}
		row := []string{
			a.Name,
			strconv.Itoa(a.Count(models.LevelError)),
			strconv.Itoa(a.Count(models.LevelWarn)),
			strconv.Itoa(a.Count(models.LevelInfo)),
			strconv.Itoa(a.Count(models.LevelDebug)),
			strings.Join(categories, "\n"),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row for %s: %w", a.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
