// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litsearch/pkg/types"
)

// sidecarRecord is the YAML metadata written next to each downloaded PDF.
// On idempotent re-runs it attributes the success to the tier that
// originally supplied the file.
type sidecarRecord struct {
	Title      string    `yaml:"title"`
	DOI        string    `yaml:"doi,omitempty"`
	Source     string    `yaml:"source"`
	Tier       string    `yaml:"tier"`
	Downloaded time.Time `yaml:"downloaded"`

	// ExtractedDOI is backfilled from the PDF text when the record arrived
	// without a DOI.
	ExtractedDOI string `yaml:"extracted_doi,omitempty"`
}

func sidecarPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, ".pdf") + ".yaml"
}

func (c *Chain) writeSidecar(paper types.Paper, source string, tier Tier, pdfPath string) {
	rec := sidecarRecord{
		Title:      paper.Title,
		DOI:        strDeref(paper.DOI),
		Source:     source,
		Tier:       tier.String(),
		Downloaded: time.Now().UTC(),
	}
	if rec.DOI == "" {
		rec.ExtractedDOI = extractDOI(pdfPath)
	}

	data, err := yaml.Marshal(rec)
	if err == nil {
		err = os.WriteFile(sidecarPath(pdfPath), data, 0o644)
	}
	if err != nil {
		c.log.Debug().Str("pdf", pdfPath).Err(err).Msg("could not write metadata sidecar")
	}
}

func readSidecar(path string) (sidecarRecord, error) {
	var rec sidecarRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}
