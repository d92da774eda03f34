// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search resolves the query time window and retrieves bibliographic
// records from the Semantic Scholar API under its pagination and rate
// limits, normalizing and deduplicating them as pages arrive.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litsearch/pkg/types"
)

// checkpointEvery is the cadence of incremental saves: every fifth newly
// collected record.
const checkpointEvery = 5

// maxConsecutivePageFailures bounds how many failed pages in a row the
// fetch loop tolerates before stopping.
const maxConsecutivePageFailures = 3

// Request holds the parameters of one search run. It is constructed once
// and never mutated.
type Request struct {
	RawQuery      string
	EnhancedQuery string
	Window        Window
	MaxResults    int
}

// Query returns the query actually sent to the API: the enhanced form when
// enhancement produced one, else the raw query.
func (r Request) Query() string {
	if r.EnhancedQuery != "" {
		return r.EnhancedQuery
	}
	return r.RawQuery
}

// Checkpointer persists the papers collected so far. Implementations must
// be idempotent: checkpointing the same state twice produces the same file.
type Checkpointer interface {
	Checkpoint(papers []types.Paper) error
}

// Output is the result of a search run.
type Output struct {
	// Papers holds the collected records in arrival order, deduplicated and
	// truncated to the requested maximum.
	Papers []types.Paper

	// TotalAvailable is the match count the source reported, or -1 when no
	// page was fetched successfully.
	TotalAvailable int

	// Skipped counts raw records dropped by normalization.
	Skipped int

	// DupsRemoved counts records rejected as duplicates.
	DupsRemoved int

	// PagesFailed counts pages skipped after unrecoverable page errors.
	PagesFailed int
}

// Run drives the paginated fetch loop. Pages are requested from offset 0 in
// steps of the page size until the maximum is collected, the source runs
// out of results, or its rate limit is exhausted (which keeps what was
// gathered). A failed page is skipped, never fatal. Surviving records are
// normalized, deduplicated by identity key, and checkpointed every fifth
// append; only a checkpoint write failure or context cancellation aborts
// the run.
func Run(ctx context.Context, fetcher Fetcher, req Request, ckpt Checkpointer, w io.Writer, log zerolog.Logger) (Output, error) {
	out := Output{TotalAvailable: -1}
	if req.MaxResults <= 0 {
		return out, fmt.Errorf("max results must be positive, got %d", req.MaxResults)
	}

	pageSize := req.MaxResults
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	seen := make(map[string]bool)
	sinceCheckpoint := 0
	consecutiveFailures := 0

	for offset := 0; len(out.Papers) < req.MaxResults; offset += pageSize {
		page, err := fetcher.Fetch(ctx, req.Query(), req.Window, offset, pageSize)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				log.Warn().Int("collected", len(out.Papers)).Msg("rate limit exhausted, keeping partial results")
				break
			}
			var pe *PageError
			if errors.As(err, &pe) {
				log.Warn().Int("offset", pe.Offset).Err(pe.Err).Msg("skipping page")
				out.PagesFailed++
				consecutiveFailures++
				// Without a known total, repeated failures would page
				// forever; give up after three in a row.
				if consecutiveFailures >= maxConsecutivePageFailures {
					break
				}
				if out.TotalAvailable >= 0 && offset+pageSize >= out.TotalAvailable {
					break
				}
				continue
			}
			return out, err
		}

		consecutiveFailures = 0
		out.TotalAvailable = page.Total
		if len(page.Records) == 0 {
			break
		}

		for _, raw := range page.Records {
			paper, ok := Normalize(raw)
			if !ok {
				out.Skipped++
				continue
			}
			key := IdentityKey(paper)
			if seen[key] {
				out.DupsRemoved++
				continue
			}
			seen[key] = true
			out.Papers = append(out.Papers, paper)
			fmt.Fprintf(w, "Processed %d/%d papers\n", len(out.Papers), page.Total)

			sinceCheckpoint++
			if ckpt != nil && sinceCheckpoint == checkpointEvery {
				if err := ckpt.Checkpoint(out.Papers); err != nil {
					return out, fmt.Errorf("writing checkpoint: %w", err)
				}
				sinceCheckpoint = 0
				fmt.Fprintf(w, "Saved %d papers to file\n", len(out.Papers))
			}

			if len(out.Papers) == req.MaxResults {
				break
			}
		}

		if offset+pageSize >= page.Total {
			break
		}
	}

	if len(out.Papers) > req.MaxResults {
		out.Papers = out.Papers[:req.MaxResults]
	}
	return out, nil
}
