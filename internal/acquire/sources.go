// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/litsearch/pkg/types"
)

// Base URLs for the content sources. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivAPIBase     = "https://export.arxiv.org/api/query"
	pmcSearchBase    = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pmcArticleBase   = "https://www.ncbi.nlm.nih.gov/pmc/articles/"
	unpaywallAPIBase = "https://api.unpaywall.org/v2/"
	openAlexAPIBase  = "https://api.openalex.org/works/"
	doiBase          = "https://doi.org/"
)

var errNoDOI = fmt.Errorf("record has no DOI")

// --- arXiv ---

// arxivSource searches the arXiv Atom API by title and downloads the PDF of
// the first entry whose title is close enough to the record's.
type arxivSource struct {
	client    *http.Client
	userAgent string
}

func (s *arxivSource) Name() string { return "arxiv" }
func (s *arxivSource) Tier() Tier   { return TierOpenAccess }

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID    string `xml:"id"`
	Title string `xml:"title"`
}

func (s *arxivSource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.Title == "" {
		return fmt.Errorf("record has no title")
	}

	query := url.Values{
		"search_query": {fmt.Sprintf("ti:%q", paper.Title)},
		"start":        {"0"},
		"max_results":  {"5"},
	}
	body, err := getBody(ctx, s.client, arxivAPIBase+"?"+query.Encode(), s.userAgent, "")
	if err != nil {
		return fmt.Errorf("arXiv API: %w", err)
	}
	defer body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(body).Decode(&feed); err != nil {
		return fmt.Errorf("parsing arXiv response: %w", err)
	}

	for _, entry := range feed.Entries {
		if !titlesSimilar(paper.Title, entry.Title) {
			continue
		}
		pdfURL := strings.Replace(strings.TrimSpace(entry.ID), "/abs/", "/pdf/", 1)
		return downloadPDF(ctx, s.client, pdfURL, s.userAgent, destPath)
	}
	return fmt.Errorf("no matching arXiv entry")
}

// --- PubMed Central ---

// pmcSource looks the title up in the PMC index and downloads the article
// PDF for the first hit.
type pmcSource struct {
	client    *http.Client
	userAgent string
}

func (s *pmcSource) Name() string { return "pmc" }
func (s *pmcSource) Tier() Tier   { return TierOpenAccess }

func (s *pmcSource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.Title == "" {
		return fmt.Errorf("record has no title")
	}

	query := url.Values{
		"db":      {"pmc"},
		"term":    {paper.Title},
		"retmode": {"json"},
		"retmax":  {"5"},
	}
	body, err := getBody(ctx, s.client, pmcSearchBase+"?"+query.Encode(), s.userAgent, "")
	if err != nil {
		return fmt.Errorf("PMC search: %w", err)
	}
	defer body.Close()

	var res struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return fmt.Errorf("parsing PMC response: %w", err)
	}
	if len(res.ESearchResult.IDList) == 0 {
		return fmt.Errorf("no PMC match")
	}

	pdfURL := fmt.Sprintf("%sPMC%s/pdf/", pmcArticleBase, res.ESearchResult.IDList[0])
	return downloadPDF(ctx, s.client, pdfURL, s.userAgent, destPath)
}

// --- Unpaywall ---

// unpaywallSource resolves a DOI through the Unpaywall API to the best
// open-access PDF location.
type unpaywallSource struct {
	client    *http.Client
	userAgent string
	email     string
}

func (s *unpaywallSource) Name() string { return "unpaywall" }
func (s *unpaywallSource) Tier() Tier   { return TierOpenAccess }

func (s *unpaywallSource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.DOI == nil {
		return errNoDOI
	}
	email := s.email
	if email == "" {
		email = "litsearch@example.org"
	}

	apiURL := unpaywallAPIBase + *paper.DOI + "?email=" + url.QueryEscape(email)
	body, err := getBody(ctx, s.client, apiURL, s.userAgent, "")
	if err != nil {
		return fmt.Errorf("Unpaywall API: %w", err)
	}
	defer body.Close()

	var res struct {
		IsOA           bool `json:"is_oa"`
		BestOALocation *struct {
			URLForPDF string `json:"url_for_pdf"`
		} `json:"best_oa_location"`
	}
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return fmt.Errorf("parsing Unpaywall response: %w", err)
	}
	if !res.IsOA || res.BestOALocation == nil || res.BestOALocation.URLForPDF == "" {
		return fmt.Errorf("no open-access PDF location")
	}

	return downloadPDF(ctx, s.client, res.BestOALocation.URLForPDF, s.userAgent, destPath)
}

// --- Direct open-access link ---

// oaLinkSource tries the record's own URL as a direct PDF link. Most
// landing pages fail the PDF validation and simply advance the chain.
type oaLinkSource struct {
	client    *http.Client
	userAgent string
}

func (s *oaLinkSource) Name() string { return "oa_link" }
func (s *oaLinkSource) Tier() Tier   { return TierOpenAccess }

func (s *oaLinkSource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.URL == nil {
		return fmt.Errorf("record has no URL")
	}
	return downloadPDF(ctx, s.client, *paper.URL, s.userAgent, destPath)
}

// --- Publisher landing page ---

// publisherSource resolves the DOI to the publisher's landing page and
// scrapes it for PDF download links. Works only from a network entitled to
// the content, which is why it belongs to the university tier.
type publisherSource struct {
	client    *http.Client
	userAgent string
}

func (s *publisherSource) Name() string { return "publisher" }
func (s *publisherSource) Tier() Tier   { return TierUniversityAccess }

func (s *publisherSource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.DOI == nil {
		return errNoDOI
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doiBase+*paper.DOI, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("publisher page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("publisher page returned HTTP %d", resp.StatusCode)
	}

	// resp.Request.URL is the post-redirect page, the right base for
	// resolving relative links.
	candidates := pdfLinks(resp.Body, resp.Request.URL)
	if len(candidates) == 0 {
		return fmt.Errorf("no PDF links on publisher page")
	}

	var lastErr error
	for _, u := range candidates {
		if err := downloadPDF(ctx, s.client, u, s.userAgent, destPath); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("all publisher PDF links failed: %w", lastErr)
}

// maxPublisherLinks bounds how many scraped links one record may try.
const maxPublisherLinks = 3

// pdfLinks extracts likely PDF anchor targets from an HTML page, resolved
// against base, in document order.
func pdfLinks(r io.Reader, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	tokenizer := html.NewTokenizer(r)
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tokenizer.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}

		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "href" {
				href := string(val)
				if looksLikePDFLink(href) {
					if u, err := base.Parse(href); err == nil && !seen[u.String()] {
						seen[u.String()] = true
						links = append(links, u.String())
					}
				}
				break
			}
			if !more {
				break
			}
		}

		if len(links) >= maxPublisherLinks {
			return links
		}
	}
}

func looksLikePDFLink(href string) bool {
	h := strings.ToLower(href)
	return strings.HasSuffix(h, ".pdf") || strings.Contains(h, "/pdf") || strings.Contains(h, "type=pdf")
}

// --- Institutional repository (via OpenAlex) ---

// repositorySource asks OpenAlex for the work's locations and downloads
// from the first repository-hosted PDF it lists.
type repositorySource struct {
	client    *http.Client
	userAgent string
	email     string
}

func (s *repositorySource) Name() string { return "repository" }
func (s *repositorySource) Tier() Tier   { return TierUniversityAccess }

func (s *repositorySource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.DOI == nil {
		return errNoDOI
	}

	apiURL := openAlexAPIBase + "https://doi.org/" + *paper.DOI + "?select=locations"
	if s.email != "" {
		apiURL += "&mailto=" + url.QueryEscape(s.email)
	}
	body, err := getBody(ctx, s.client, apiURL, s.userAgent, "")
	if err != nil {
		return fmt.Errorf("OpenAlex API: %w", err)
	}
	defer body.Close()

	var res struct {
		Locations []struct {
			PDFURL string `json:"pdf_url"`
			Source *struct {
				Type string `json:"type"`
			} `json:"source"`
		} `json:"locations"`
	}
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	for _, loc := range res.Locations {
		if loc.PDFURL == "" || loc.Source == nil || loc.Source.Type != "repository" {
			continue
		}
		return downloadPDF(ctx, s.client, loc.PDFURL, s.userAgent, destPath)
	}
	return fmt.Errorf("no repository-hosted PDF listed")
}

// --- Generic DOI resolution ---

// doiSource content-negotiates a PDF straight from the DOI resolver chain.
type doiSource struct {
	client    *http.Client
	userAgent string
}

func (s *doiSource) Name() string { return "doi" }
func (s *doiSource) Tier() Tier   { return TierUniversityAccess }

func (s *doiSource) Fetch(ctx context.Context, paper types.Paper, destPath string) error {
	if paper.DOI == nil {
		return errNoDOI
	}
	return downloadPDF(ctx, s.client, doiBase+*paper.DOI, s.userAgent, destPath)
}

// --- shared helpers ---

// getBody issues a GET and returns the body for a 200 response.
func getBody(ctx context.Context, client *http.Client, rawURL, userAgent, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// downloadPDF fetches url to destPath through a temp file, validating the
// content before the rename so a half-written or non-PDF body never lands
// on the final path.
func downloadPDF(ctx context.Context, client *http.Client, rawURL, userAgent, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(strings.ToLower(ct), "text/html") {
		return fmt.Errorf("non-PDF content type %q from %s", ct, rawURL)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".litsearch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := validatePDF(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// titlesSimilar reports whether two titles share enough words to be the
// same paper. Word overlap over the smaller set must exceed 0.6.
func titlesSimilar(a, b string) bool {
	wordsA := titleWordSet(a)
	wordsB := titleWordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	common := 0
	for w := range wordsA {
		if wordsB[w] {
			common++
		}
	}

	smaller := len(wordsA)
	if len(wordsB) < smaller {
		smaller = len(wordsB)
	}
	return float64(common)/float64(smaller) > 0.6
}

func titleWordSet(title string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
