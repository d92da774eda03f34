// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"strings"
	"unicode"

	"github.com/pdiddy/litsearch/pkg/types"
)

// maxStemLen caps filename stems so long titles stay filesystem-safe.
const maxStemLen = 100

// Filename derives a deterministic, collision-free PDF filename from the
// paper's identity key: the DOI when present, else the normalized title.
// Re-running acquisition for the same record always lands on the same path.
func Filename(p types.Paper) string {
	if p.DOI != nil && *p.DOI != "" {
		return doiStem(*p.DOI) + ".pdf"
	}
	return titleStem(p.Title) + ".pdf"
}

// doiStem makes a DOI filesystem-safe: "10.1145/123" becomes "10.1145-123".
func doiStem(doi string) string {
	stem := strings.NewReplacer("/", "-", ":", "-").Replace(strings.ToLower(doi))
	return clampStem(stem)
}

// titleStem lowercases the title, strips punctuation, and joins words with
// underscores.
func titleStem(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	stem := strings.Join(strings.Fields(b.String()), "_")
	if stem == "" {
		stem = "untitled"
	}
	return clampStem(stem)
}

func clampStem(stem string) string {
	if len(stem) > maxStemLen {
		stem = strings.TrimRight(stem[:maxStemLen], "_-.")
	}
	return stem
}
