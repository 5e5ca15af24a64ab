package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/playback"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
)

var ErrNotFound = errors.New("storage: run not found")

// Store keeps recorded result bundles, one directory per run.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
	Duration  float64   `json:"duration"`
	Steps     int       `json:"steps"`
	Series    []string  `json:"series"`
}

// Save writes b and its request parameters as a new run.
func (s *Store) Save(source string, p playback.Params, b *bundle.Bundle) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("run_%d_%s", now.Unix(), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	names := columns(b)
	meta := RunMetadata{
		ID:        runID,
		Source:    source,
		Timestamp: now,
		Speed:     p.Speed,
		Duration:  p.Duration,
		Steps:     b.Len(),
		Series:    names,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(names); err != nil {
		return "", err
	}

	data := make([][]float64, len(names))
	for i, name := range names {
		data[i], _ = b.Series(name)
	}
	row := make([]string, len(names))
	for step := 0; step < b.Len(); step++ {
		for i := range names {
			row[i] = strconv.FormatFloat(data[i][step], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadBundle reads the series of a run back into a validated bundle.
func (s *Store) LoadBundle(runID string) (*bundle.Bundle, error) {
	file, err := s.openSeries(runID)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: %w", runID, bundle.ErrEmpty)
	}

	header := records[0]
	series := make(map[string][]float64, len(header))
	for _, name := range header {
		series[name] = make([]float64, 0, len(records)-1)
	}
	for line, record := range records[1:] {
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("read %s line %d: %w", runID, line+2, err)
			}
			series[header[i]] = append(series[header[i]], v)
		}
	}

	return bundle.New(series)
}

// CopySeries writes the stored CSV of a run to w.
func (s *Store) CopySeries(w io.Writer, runID string) error {
	file, err := s.openSeries(runID)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}

// Find returns the newest run recorded with parameters p.
func (s *Store) Find(p playback.Params) (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Speed == p.Speed && runs[i].Duration == p.Duration {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: speed=%g duration=%g", ErrNotFound, p.Speed, p.Duration)
}

// Latest returns the newest run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[len(runs)-1], nil
}

// Fetcher replays stored runs as if they came from the simulation service.
// With a run ID every start gets that run; otherwise the newest run matching
// the start parameters is used.
func (s *Store) Fetcher(runID string) playback.Fetcher {
	return playback.FetcherFunc(func(ctx context.Context, p playback.Params) (*bundle.Bundle, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := runID
		if id == "" {
			meta, err := s.Find(p)
			if err != nil {
				return nil, err
			}
			id = meta.ID
		}
		return s.LoadBundle(id)
	})
}

func (s *Store) openSeries(runID string) (*os.File, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	return file, nil
}

// columns puts hour first, then the remaining series in lexical order.
func columns(b *bundle.Bundle) []string {
	names := []string{bundle.Hour}
	for _, name := range b.Names() {
		if name != bundle.Hour {
			names = append(names, name)
		}
	}
	return names
}
