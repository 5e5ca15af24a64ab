package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/metrics"
)

type ExportData struct {
	Run     RunMetadata       `json:"run"`
	Summary []metrics.Summary `json:"summary"`
	Series  *bundle.Bundle    `json:"series"`
}

// ExportJSON writes a run's metadata, per-series summary, and series to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	b, err := s.LoadBundle(runID)
	if err != nil {
		return err
	}
	summary, err := metrics.Summarize(b, columns(b)...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: *meta, Summary: summary, Series: b})
}
