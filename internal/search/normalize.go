// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/litsearch/pkg/types"
)

// Normalize maps a raw API record into the canonical Paper shape. A record
// with no title is unusable and reports ok=false; every other missing field
// becomes a nil pointer (or an empty author list) so a single sparse record
// never aborts a batch.
func Normalize(raw RawPaper) (types.Paper, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		Title:   title,
		Authors: []string{},
	}

	if raw.Year > 0 {
		p.PublishYear = types.StringPtr(strconv.Itoa(raw.Year))
	}
	if name := strings.TrimSpace(raw.Journal.Name); name != "" {
		p.Journal = types.StringPtr(name)
	}
	if doi := strings.TrimSpace(raw.ExternalIDs.DOI); doi != "" {
		p.DOI = types.StringPtr(doi)
	}
	if abstract := strings.TrimSpace(raw.Abstract); abstract != "" {
		p.Abstract = types.StringPtr(abstract)
	}
	if u := strings.TrimSpace(raw.URL); u != "" {
		p.URL = types.StringPtr(u)
	}

	for _, a := range raw.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	return p, true
}

// IdentityKey returns the dedup key for a paper: the lowercased DOI when
// present, else the normalized title.
func IdentityKey(p types.Paper) string {
	if p.DOI != nil && *p.DOI != "" {
		return "doi:" + strings.ToLower(*p.DOI)
	}
	return "title:" + NormalizeTitle(p.Title)
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the
// title with collapsed whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
