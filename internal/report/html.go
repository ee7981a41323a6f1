package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"sigevent-service/internal/models"
)

// MaxTableSize caps the number of collections shown in the HTML report.
const MaxTableSize = 10

//go:embed templates/summary.html
var templateFS embed.FS

var summaryTemplate = template.Must(template.ParseFS(templateFS, "templates/summary.html"))

type summaryRow struct {
	Name                          string
	Errors, Warnings, Info, Debug int
	Categories                    []models.CategoryCount
}

type summaryView struct {
	Today            string
	Rows             []summaryRow
	NumCollections   int
	TotalCollections int
}

// GenerateHTML renders the top MaxTableSize analyses for the day named today.
func GenerateHTML(analyses []models.CollectionAnalysis, today string) (string, error) {
	shown := analyses
	if len(shown) > MaxTableSize {
		shown = shown[:MaxTableSize]
	}

	view := summaryView{
		Today:            today,
		Rows:             make([]summaryRow, 0, len(shown)),
		NumCollections:   len(shown),
		TotalCollections: len(analyses),
	}
	for _, a := range shown {
		view.Rows = append(view.Rows, summaryRow{
			Name:       a.Name,
			Errors:     a.Count(models.LevelError),
			Warnings:   a.Count(models.LevelWarn),
			Info:       a.Count(models.LevelInfo),
			Debug:      a.Count(models.LevelDebug),
			Categories: a.CategoryCounts,
		})
	}

	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return buf.String(), nil
}
