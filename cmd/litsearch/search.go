// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litsearch/internal/acquire"
	"github.com/pdiddy/litsearch/internal/enhance"
	"github.com/pdiddy/litsearch/internal/export"
	"github.com/pdiddy/litsearch/internal/search"
	"github.com/pdiddy/litsearch/pkg/types"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultUserAgent  = "litsearch/0.1"
	defaultMaxResults = 20
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search peer-reviewed literature over a time window",
	Long: `Search queries the Semantic Scholar API for papers matching a research
question within one time window: the last N years, an explicit year range,
or an explicit month range. Only one time option may be given. Results are
normalized, deduplicated, and checkpointed to the output file every five
records so partial progress survives interruption.

With --download-pdfs, each collected record is run through an ordered chain
of content sources (arXiv, PubMed Central, Unpaywall, direct links, and
under university_access mode publisher and repository routes) until a PDF
lands on disk or the chain is exhausted.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("years-back", "y", search.DefaultYearsBack, "how many years back to search")
	searchCmd.Flags().StringP("year-range", "r", "", `specific year range like "2020-2025" or "2021"`)
	searchCmd.Flags().StringP("month-range", "m", "", `specific month range like "2025-01-2025-06"`)
	searchCmd.Flags().IntP("max-results", "n", defaultMaxResults, "maximum results (up to 100 per request without an API key)")
	searchCmd.Flags().StringP("output", "o", "", "output file (saves JSON results and enables checkpointing)")
	searchCmd.Flags().Bool("download-pdfs", false, "download PDFs of found papers")
	searchCmd.Flags().String("pdf-mode", string(acquire.ModeOpenAccess),
		"PDF download mode: open_access (free sources only) or university_access (try all sources)")
	searchCmd.Flags().String("pdf-dir", "", "directory for PDF downloads (derived from the query if omitted)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	// Configuration errors are reported before any network call.
	window, err := windowFromFlags(cmd)
	if err != nil {
		return err
	}

	downloadPDFs, _ := cmd.Flags().GetBool("download-pdfs")
	pdfMode, _ := cmd.Flags().GetString("pdf-mode")
	mode, err := acquire.ParseMode(pdfMode)
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", maxResults)
	}
	output, _ := cmd.Flags().GetString("output")

	req := search.Request{
		RawQuery:      query,
		EnhancedQuery: enhanceQuery(cmd, query),
		Window:        window,
		MaxResults:    maxResults,
	}

	searchCfg := types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("search.timeout"),
			UserAgent: defaultUserAgent,
		},
		MaxResults:     maxResults,
		APIKey:         secretDefault("semantic-scholar-api-key", viper.GetString("search.api_key")),
		MaxRateRetries: viper.GetInt("search.max_rate_retries"),
	}
	if searchCfg.Timeout == 0 {
		searchCfg.Timeout = defaultTimeout
	}

	client := search.NewScholarClient(searchCfg, search.WithLogger(logger))

	doc := export.NewDocument(req, client.Source(), time.Now())
	var ckpt search.Checkpointer
	if output != "" {
		ckpt = export.NewFileCheckpointer(output, doc)
	}

	fmt.Printf("Searching papers from %s...\n", window.Period())
	out, err := search.Run(cmd.Context(), client, req, ckpt, os.Stdout, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d papers\n", len(out.Papers))

	doc.Papers = out.Papers
	doc.TotalResults = len(out.Papers)

	if downloadPDFs && len(out.Papers) > 0 {
		pdfDir, _ := cmd.Flags().GetString("pdf-dir")
		if pdfDir == "" {
			pdfDir = derivePDFDir(query)
		}

		fmt.Printf("\nDownloading PDFs using %s mode...\n", mode)
		stats := downloadPDFBatch(cmd, out.Papers, mode, pdfDir)
		doc.PDFDownloads = &export.PDFDownloads{
			Enabled:    true,
			Mode:       string(mode),
			Directory:  pdfDir,
			Statistics: stats,
		}
	}

	if output != "" {
		if err := export.Write(doc, output); err != nil {
			return err
		}
		fmt.Printf("Results saved to: %s\n", output)
		return nil
	}

	fmt.Println("\n--- Search Results Summary ---")
	fmt.Printf("Query: %s\n", doc.SearchQuery)
	fmt.Printf("Period: %s\n", *doc.SearchPeriod)
	fmt.Printf("Papers found: %d\n", doc.TotalResults)
	return nil
}

// windowFromFlags resolves the three mutually-exclusive time options.
// Changed detects explicit flags, so an explicit "-y 10" still conflicts
// with "-r" or "-m".
func windowFromFlags(cmd *cobra.Command) (search.Window, error) {
	yearsBack, _ := cmd.Flags().GetInt("years-back")
	yearRange, _ := cmd.Flags().GetString("year-range")
	monthRange, _ := cmd.Flags().GetString("month-range")

	return search.ResolveWindow(search.WindowOptions{
		YearsBack:    yearsBack,
		YearsBackSet: cmd.Flags().Changed("years-back"),
		YearRange:    yearRange,
		MonthRange:   monthRange,
	}, time.Now())
}

// enhanceQuery runs LLM query enhancement when enabled, degrading to the
// raw query on any failure.
func enhanceQuery(cmd *cobra.Command, query string) string {
	if !viper.GetBool("enhance.enabled") {
		return ""
	}

	enhancer := enhance.New(types.EnhanceConfig{
		Model:   viper.GetString("enhance.model"),
		BaseURL: viper.GetString("enhance.base_url"),
		APIKey:  secretDefault("enhancer-api-key", viper.GetString("enhance.api_key")),
	})

	enhanced, err := enhancer.Enhance(cmd.Context(), query)
	if err != nil {
		logger.Warn().Err(err).Msg("query enhancement failed, using original query")
		return ""
	}
	fmt.Printf("Enhanced query: %s\n", enhanced)
	return enhanced
}

// downloadPDFBatch runs the acquisition chain over papers and returns the
// accumulated statistics.
func downloadPDFBatch(cmd *cobra.Command, papers []types.Paper, mode acquire.Mode, pdfDir string) types.DownloadStats {
	cfg := acquireConfig(pdfDir)
	// The acquisition client follows publisher redirect chains; give it the
	// same timeout budget as a single source attempt.
	client := &http.Client{Timeout: cfg.SourceTimeout}

	chain := acquire.NewChain(client, cfg, mode, logger)
	chain.AcquireBatch(cmd.Context(), papers, os.Stdout)
	return chain.Stats()
}

func acquireConfig(pdfDir string) types.AcquireConfig {
	cfg := types.AcquireConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("acquire.timeout"),
			UserAgent: defaultUserAgent,
		},
		Dir:            pdfDir,
		SourceTimeout:  viper.GetDuration("acquire.source_timeout"),
		DownloadDelay:  viper.GetDuration("acquire.download_delay"),
		UnpaywallEmail: secretDefault("unpaywall-email", viper.GetString("acquire.unpaywall_email")),
		OpenAlexEmail:  secretDefault("openalex-email", viper.GetString("acquire.openalex_email")),
	}
	if cfg.SourceTimeout == 0 {
		cfg.SourceTimeout = 30 * time.Second
	}
	if cfg.DownloadDelay == 0 {
		cfg.DownloadDelay = 1 * time.Second
	}
	return cfg
}

// derivePDFDir builds the default download directory from the query, e.g.
// "pdfs_west_nile_virus_pr" for "west nile virus prediction".
func derivePDFDir(query string) string {
	name := strings.ReplaceAll(query, " ", "_")
	if len(name) > 20 {
		name = name[:20]
	}
	return "pdfs_" + name
}
