// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export owns the result JSON schema: the final export, the
// incremental checkpoints written during a run (same schema, same path,
// overwritten in place), and re-loading a previous export.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/litsearch/internal/search"
	"github.com/pdiddy/litsearch/pkg/types"
)

// Document is the exported result. Field order and JSON keys are the wire
// contract; checkpoint files use the identical shape.
type Document struct {
	SearchQuery  string        `json:"search_query"`
	YearsBack    *int          `json:"years_back"`
	SearchPeriod *string       `json:"search_period"`
	APISource    string        `json:"api_source"`
	TotalResults int           `json:"total_results"`
	SearchDate   string        `json:"search_date"`
	Papers       []types.Paper `json:"papers"`

	PDFDownloads *PDFDownloads `json:"pdf_downloads,omitempty"`
}

// PDFDownloads summarizes the acquisition stage in the export.
type PDFDownloads struct {
	Enabled    bool                `json:"enabled"`
	Mode       string              `json:"mode"`
	Directory  string              `json:"directory"`
	Statistics types.DownloadStats `json:"statistics"`
}

// NewDocument builds the export skeleton for a request. years_back is set
// only for relative windows; explicit ranges export it as null. The search
// date is frozen here so that repeated checkpoints of the same state are
// byte-identical.
func NewDocument(req search.Request, apiSource string, now time.Time) Document {
	doc := Document{
		SearchQuery:  req.RawQuery,
		SearchPeriod: types.StringPtr(req.Window.Period()),
		APISource:    apiSource,
		SearchDate:   now.Format(time.RFC3339),
		Papers:       []types.Paper{},
	}
	if req.Window.Kind == search.WindowYearsBack {
		yb := req.Window.YearsBack
		doc.YearsBack = &yb
	}
	return doc
}

// Write marshals the document and writes it atomically: to a temp file in
// the target directory, then renamed over the destination.
func Write(doc Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".litsearch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing results: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Read loads a previously exported document.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading results file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing results file %s: %w", path, err)
	}
	return doc, nil
}

// FileCheckpointer persists in-progress results to a fixed path. Only fully
// normalized, deduplicated records reach Checkpoint, so a crash between
// saves loses at most the records collected since the last one.
type FileCheckpointer struct {
	path string
	base Document
}

// NewFileCheckpointer returns a checkpointer that overwrites path with the
// base document plus the papers collected so far.
func NewFileCheckpointer(path string, base Document) *FileCheckpointer {
	return &FileCheckpointer{path: path, base: base}
}

// Checkpoint implements search.Checkpointer.
func (c *FileCheckpointer) Checkpoint(papers []types.Paper) error {
	doc := c.base
	doc.Papers = papers
	doc.TotalResults = len(papers)
	return Write(doc, c.path)
}
