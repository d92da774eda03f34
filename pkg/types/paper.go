// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litsearch pipeline:
// the bibliographic record shape, download statistics, and the per-stage
// configuration structs.
package types

// Paper is a normalized bibliographic record. Nullable fields are pointers
// so the exported JSON carries explicit nulls; Authors is always non-nil so
// it exports as [] rather than null.
type Paper struct {
	// PublishYear is the publication year as a decimal string, or nil when
	// the source did not report one.
	PublishYear *string `json:"publish_year" yaml:"publish_year"`

	// Title is the paper title. Records without a title are dropped during
	// normalization, so Title is never empty for collected papers.
	Title string `json:"title" yaml:"title"`

	// Journal is the publication venue name, if reported.
	Journal *string `json:"journal" yaml:"journal"`

	// DOI is the digital object identifier, if reported. It is the primary
	// identity key for deduplication and PDF filenames.
	DOI *string `json:"doi" yaml:"doi"`

	// Authors lists author names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract or summary, if reported.
	Abstract *string `json:"abstract" yaml:"abstract"`

	// URL is the landing page URL reported by the search API.
	URL *string `json:"url" yaml:"url"`
}

// StringPtr returns a pointer to s. Convenience for building Paper values.
func StringPtr(s string) *string { return &s }

// DownloadStats counts PDF acquisition outcomes across a run. The JSON keys
// match the exported pdf_downloads.statistics object.
//
// Invariants: SuccessfulDownloads + FailedDownloads == TotalAttempts, and
// OpenAccessFound + UniversityAccessUsed == SuccessfulDownloads.
type DownloadStats struct {
	TotalAttempts        int `json:"total_attempts" yaml:"total_attempts"`
	SuccessfulDownloads  int `json:"successful_downloads" yaml:"successful_downloads"`
	OpenAccessFound      int `json:"open_access_found" yaml:"open_access_found"`
	UniversityAccessUsed int `json:"university_access_used" yaml:"university_access_used"`
	FailedDownloads      int `json:"failed_downloads" yaml:"failed_downloads"`
}
