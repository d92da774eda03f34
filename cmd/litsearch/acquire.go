// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litsearch/internal/acquire"
	"github.com/pdiddy/litsearch/internal/export"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <results.json>",
	Short: "Download PDFs for a previously exported results file",
	Long: `Acquire re-runs the PDF acquisition chain over the papers in an exported
results file. Already-downloaded PDFs are detected by filename and skipped,
so interrupted runs can be resumed. The file is rewritten with updated
download statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().String("pdf-mode", string(acquire.ModeOpenAccess),
		"PDF download mode: open_access (free sources only) or university_access (try all sources)")
	acquireCmd.Flags().String("pdf-dir", "", "directory for PDF downloads (derived from the query if omitted)")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	path := args[0]

	pdfMode, _ := cmd.Flags().GetString("pdf-mode")
	mode, err := acquire.ParseMode(pdfMode)
	if err != nil {
		return err
	}

	doc, err := export.Read(path)
	if err != nil {
		return err
	}
	if len(doc.Papers) == 0 {
		return fmt.Errorf("no papers in %s", path)
	}

	pdfDir, _ := cmd.Flags().GetString("pdf-dir")
	if pdfDir == "" {
		if doc.PDFDownloads != nil && doc.PDFDownloads.Directory != "" {
			pdfDir = doc.PDFDownloads.Directory
		} else {
			pdfDir = derivePDFDir(doc.SearchQuery)
		}
	}

	cfg := acquireConfig(pdfDir)
	client := &http.Client{Timeout: cfg.SourceTimeout}
	chain := acquire.NewChain(client, cfg, mode, logger)

	fmt.Printf("Downloading PDFs for %d papers using %s mode...\n", len(doc.Papers), mode)
	chain.AcquireBatch(cmd.Context(), doc.Papers, os.Stdout)

	doc.PDFDownloads = &export.PDFDownloads{
		Enabled:    true,
		Mode:       string(mode),
		Directory:  pdfDir,
		Statistics: chain.Stats(),
	}

	if err := export.Write(doc, path); err != nil {
		return err
	}
	fmt.Printf("Updated results saved to: %s\n", path)
	return nil
}
