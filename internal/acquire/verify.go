// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"os"
	"regexp"

	"github.com/ledongthuc/pdf"
)

// minPDFSize rejects bodies too small to be a real paper; error pages and
// stub responses are usually well under 1 KiB.
const minPDFSize = 1024

// doiPattern matches DOIs embedded in page text.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// validatePDF checks that a downloaded file is plausibly a PDF: at least
// minPDFSize bytes and starting with the %PDF magic.
func validatePDF(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() < minPDFSize {
		return fmt.Errorf("downloaded file too small (%d bytes)", info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := f.Read(header); err != nil {
		return err
	}
	if string(header) != "%PDF" {
		return fmt.Errorf("downloaded file is not a PDF")
	}
	return nil
}

// extractDOI scans the first pages of a PDF for a DOI. Best effort: any
// parse problem returns the empty string, never an error, since the file
// already passed validation and extraction only enriches the sidecar.
func extractDOI(path string) (doi string) {
	defer func() {
		// The parser can panic on unusual files.
		if r := recover(); r != nil {
			doi = ""
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	maxPages := 3
	if reader.NumPage() < maxPages {
		maxPages = reader.NumPage()
	}

	for i := 1; i <= maxPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if m := doiPattern.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
