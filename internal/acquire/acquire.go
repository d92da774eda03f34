// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads full-text PDFs for bibliographic records
// through an ordered chain of content sources. Each record is tried against
// the sources appropriate to the configured access mode, stopping at the
// first success; a pre-existing file for the same identity key
// short-circuits without re-downloading.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litsearch/pkg/types"
)

// Mode selects which content sources the chain may use.
type Mode string

const (
	// ModeOpenAccess tries only sources that serve freely licensed copies.
	ModeOpenAccess Mode = "open_access"

	// ModeUniversityAccess tries the open sources first, then
	// subscription-gated routes that work from an entitled network.
	ModeUniversityAccess Mode = "university_access"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOpenAccess, ModeUniversityAccess:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid pdf mode %q: use %q or %q", s, ModeOpenAccess, ModeUniversityAccess)
	}
}

// Tier classifies which statistics bucket a successful source feeds.
type Tier int

const (
	TierOpenAccess Tier = iota
	TierUniversityAccess
)

func (t Tier) String() string {
	if t == TierUniversityAccess {
		return "university_access"
	}
	return "open_access"
}

// Source is one content source in the fallback chain. Fetch writes the PDF
// to destPath or returns an error; any error advances the chain to the next
// source. Adding a source means appending a handler, not new branching.
type Source interface {
	Name() string
	Tier() Tier
	Fetch(ctx context.Context, paper types.Paper, destPath string) error
}

// Attempt records the acquisition outcome for one paper.
type Attempt struct {
	Paper types.Paper
	Mode  Mode

	// SourcesTried lists source names in the order they were attempted.
	SourcesTried []string

	// Path is the local PDF path on success, empty on failure.
	Path string

	// Source is the name of the source that succeeded, empty on failure.
	Source string

	// Skipped marks a pre-existing file found for the identity key.
	Skipped bool
}

// Succeeded reports whether a PDF is on disk for this paper.
func (a Attempt) Succeeded() bool { return a.Path != "" }

// Chain drives the per-record source fallback and keeps the run counters.
type Chain struct {
	dir           string
	mode          Mode
	sources       []Source
	sourceTimeout time.Duration
	delay         time.Duration
	log           zerolog.Logger

	stats types.DownloadStats
}

const (
	defaultSourceTimeout = 30 * time.Second
	defaultDownloadDelay = 1 * time.Second
)

// NewChain builds a chain for the given mode. The source order is fixed:
// arxiv, pmc, unpaywall, oa_link for open access, followed by publisher,
// repository, and doi resolution under university access.
func NewChain(client *http.Client, cfg types.AcquireConfig, mode Mode, log zerolog.Logger) *Chain {
	c := &Chain{
		dir:           cfg.Dir,
		mode:          mode,
		sourceTimeout: cfg.SourceTimeout,
		delay:         cfg.DownloadDelay,
		log:           log,
	}
	if c.sourceTimeout <= 0 {
		c.sourceTimeout = defaultSourceTimeout
	}
	if c.delay < 0 {
		c.delay = defaultDownloadDelay
	}

	c.sources = []Source{
		&arxivSource{client: client, userAgent: cfg.UserAgent},
		&pmcSource{client: client, userAgent: cfg.UserAgent},
		&unpaywallSource{client: client, userAgent: cfg.UserAgent, email: cfg.UnpaywallEmail},
		&oaLinkSource{client: client, userAgent: cfg.UserAgent},
	}
	if mode == ModeUniversityAccess {
		c.sources = append(c.sources,
			&publisherSource{client: client, userAgent: cfg.UserAgent},
			&repositorySource{client: client, userAgent: cfg.UserAgent, email: cfg.OpenAlexEmail},
			&doiSource{client: client, userAgent: cfg.UserAgent},
		)
	}
	return c
}

// Stats returns the counters accumulated so far.
func (c *Chain) Stats() types.DownloadStats { return c.stats }

// Acquire runs the source chain for one paper. A record with no DOI, no
// title, and no URL fails immediately without contacting any source.
func (c *Chain) Acquire(ctx context.Context, paper types.Paper) Attempt {
	c.stats.TotalAttempts++
	att := Attempt{Paper: paper, Mode: c.mode}

	dest := filepath.Join(c.dir, Filename(paper))

	// Idempotent re-runs: an existing file for this identity key is a
	// success without re-downloading. The sidecar written on the original
	// download attributes the tier.
	if _, err := os.Stat(dest); err == nil {
		att.Path = dest
		att.Skipped = true
		tier := TierOpenAccess
		if rec, readErr := readSidecar(sidecarPath(dest)); readErr == nil {
			att.Source = rec.Source
			if rec.Tier == TierUniversityAccess.String() {
				tier = TierUniversityAccess
			}
		}
		c.recordSuccess(tier)
		return att
	}

	if paper.DOI == nil && paper.Title == "" && paper.URL == nil {
		c.stats.FailedDownloads++
		return att
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.log.Error().Str("dir", c.dir).Err(err).Msg("cannot create download directory")
		c.stats.FailedDownloads++
		return att
	}

	for _, s := range c.sources {
		att.SourcesTried = append(att.SourcesTried, s.Name())

		sctx, cancel := context.WithTimeout(ctx, c.sourceTimeout)
		err := s.Fetch(sctx, paper, dest)
		cancel()
		if err != nil {
			c.log.Debug().
				Str("source", s.Name()).
				Str("title", paper.Title).
				Str("doi", strDeref(paper.DOI)).
				Err(err).
				Msg("source failed, trying next")
			continue
		}

		att.Path = dest
		att.Source = s.Name()
		c.recordSuccess(s.Tier())
		c.writeSidecar(paper, s.Name(), s.Tier(), dest)
		return att
	}

	c.stats.FailedDownloads++
	return att
}

// AcquireBatch processes the papers sequentially with the configured delay
// between records, printing per-record status and a final summary to w.
func (c *Chain) AcquireBatch(ctx context.Context, papers []types.Paper, w io.Writer) []Attempt {
	attempts := make([]Attempt, 0, len(papers))
	for i, paper := range papers {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return attempts
			case <-time.After(c.delay):
			}
		}

		att := c.Acquire(ctx, paper)
		attempts = append(attempts, att)

		switch {
		case att.Skipped:
			fmt.Fprintf(w, "skipped:    %s (already exists)\n", filepath.Base(att.Path))
		case att.Succeeded():
			fmt.Fprintf(w, "downloaded: %s (%s)\n", filepath.Base(att.Path), att.Source)
		default:
			fmt.Fprintf(w, "failed:     %s\n", truncateTitle(paper.Title, 70))
		}
	}

	s := c.stats
	fmt.Fprintf(w, "\nPDF summary: %d attempted, %d downloaded (%d open access, %d university access), %d failed\n",
		s.TotalAttempts, s.SuccessfulDownloads, s.OpenAccessFound, s.UniversityAccessUsed, s.FailedDownloads)
	return attempts
}

func (c *Chain) recordSuccess(tier Tier) {
	c.stats.SuccessfulDownloads++
	if tier == TierUniversityAccess {
		c.stats.UniversityAccessUsed++
	} else {
		c.stats.OpenAccessFound++
	}
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncateTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
