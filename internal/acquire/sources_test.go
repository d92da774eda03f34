// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/litsearch/pkg/types"
)

func servePDF(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(fakePDF())
}

func destPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out.pdf")
}

func assertPDFOnDisk(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading downloaded PDF: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Error("downloaded file is not a PDF")
	}
}

func TestArxivSource(t *testing.T) {
	var pdfServed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/query"):
			q := r.URL.Query().Get("search_query")
			if !strings.HasPrefix(q, "ti:") {
				t.Errorf("search_query = %q, want title search", q)
			}
			fmt.Fprintf(w, `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>%s/abs/2101.00001</id>
    <title>Totally Unrelated Work About Chemistry</title>
  </entry>
  <entry>
    <id>%s/abs/2101.00002</id>
    <title>Graph Learning for Outbreak Forecasting</title>
  </entry>
</feed>`, srvURL(r), srvURL(r))
		case strings.HasPrefix(r.URL.Path, "/pdf/2101.00002"):
			pdfServed = true
			servePDF(w)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	restore := arxivAPIBase
	arxivAPIBase = srv.URL + "/api/query"
	defer func() { arxivAPIBase = restore }()

	s := &arxivSource{client: srv.Client(), userAgent: "test"}
	dest := destPath(t)
	err := s.Fetch(context.Background(), types.Paper{Title: "Graph Learning for Outbreak Forecasting"}, dest)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !pdfServed {
		t.Error("the dissimilar first entry must be passed over")
	}
	assertPDFOnDisk(t, dest)
}

// srvURL reconstructs the test server origin from the incoming request, so
// feed entries can point back at the same server.
func srvURL(r *http.Request) string {
	return "http://" + r.Host
}

func TestArxivSourceNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	}))
	defer srv.Close()

	restore := arxivAPIBase
	arxivAPIBase = srv.URL
	defer func() { arxivAPIBase = restore }()

	s := &arxivSource{client: srv.Client(), userAgent: "test"}
	if err := s.Fetch(context.Background(), types.Paper{Title: "Anything"}, destPath(t)); err == nil {
		t.Error("Fetch() expected error for empty feed")
	}
}

func TestPMCSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/esearch"):
			if r.URL.Query().Get("db") != "pmc" {
				t.Errorf("db = %q, want pmc", r.URL.Query().Get("db"))
			}
			fmt.Fprint(w, `{"esearchresult": {"idlist": ["7654321"]}}`)
		case strings.HasPrefix(r.URL.Path, "/articles/PMC7654321/pdf/"):
			servePDF(w)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	restoreSearch, restoreArticle := pmcSearchBase, pmcArticleBase
	pmcSearchBase = srv.URL + "/esearch"
	pmcArticleBase = srv.URL + "/articles/"
	defer func() { pmcSearchBase, pmcArticleBase = restoreSearch, restoreArticle }()

	s := &pmcSource{client: srv.Client(), userAgent: "test"}
	dest := destPath(t)
	if err := s.Fetch(context.Background(), types.Paper{Title: "An Indexed Paper"}, dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	assertPDFOnDisk(t, dest)
}

func TestUnpaywallSource(t *testing.T) {
	var gotEmail string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/10.1000/up1"):
			gotEmail = r.URL.Query().Get("email")
			fmt.Fprintf(w, `{"is_oa": true, "best_oa_location": {"url_for_pdf": "http://%s/file.pdf"}}`, r.Host)
		case r.URL.Path == "/file.pdf":
			servePDF(w)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	restore := unpaywallAPIBase
	unpaywallAPIBase = srv.URL + "/v2/"
	defer func() { unpaywallAPIBase = restore }()

	s := &unpaywallSource{client: srv.Client(), userAgent: "test", email: "me@uni.edu"}
	dest := destPath(t)
	if err := s.Fetch(context.Background(), paperWithDOI("T", "10.1000/up1"), dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotEmail != "me@uni.edu" {
		t.Errorf("email = %q", gotEmail)
	}
	assertPDFOnDisk(t, dest)
}

func TestUnpaywallSourceClosedAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_oa": false, "best_oa_location": null}`)
	}))
	defer srv.Close()

	restore := unpaywallAPIBase
	unpaywallAPIBase = srv.URL + "/v2/"
	defer func() { unpaywallAPIBase = restore }()

	s := &unpaywallSource{client: srv.Client(), userAgent: "test"}
	if err := s.Fetch(context.Background(), paperWithDOI("T", "10.1000/closed"), destPath(t)); err == nil {
		t.Error("Fetch() expected error for closed-access record")
	}
}

func TestUnpaywallSourceRequiresDOI(t *testing.T) {
	s := &unpaywallSource{client: http.DefaultClient, userAgent: "test"}
	if err := s.Fetch(context.Background(), types.Paper{Title: "No DOI"}, destPath(t)); err == nil {
		t.Error("Fetch() expected error without a DOI")
	}
}

func TestOALinkSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		servePDF(w)
	}))
	defer srv.Close()

	s := &oaLinkSource{client: srv.Client(), userAgent: "test"}
	dest := destPath(t)
	paper := types.Paper{Title: "Direct", URL: types.StringPtr(srv.URL + "/direct.pdf")}
	if err := s.Fetch(context.Background(), paper, dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	assertPDFOnDisk(t, dest)
}

func TestPublisherSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/10.1000/pub1":
			// DOI resolution redirects to the landing page.
			http.Redirect(w, r, "/article/landing", http.StatusFound)
		case "/article/landing":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>
<a href="/article/supplement.zip">Supplement</a>
<a href="/article/download.pdf">Download PDF</a>
</body></html>`)
		case "/article/download.pdf":
			servePDF(w)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	restore := doiBase
	doiBase = srv.URL + "/"
	defer func() { doiBase = restore }()

	s := &publisherSource{client: srv.Client(), userAgent: "test"}
	dest := destPath(t)
	if err := s.Fetch(context.Background(), paperWithDOI("Gated", "10.1000/pub1"), dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	assertPDFOnDisk(t, dest)
}

func TestRepositorySource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/works/"):
			fmt.Fprintf(w, `{"locations": [
  {"pdf_url": "http://%[1]s/publisher.pdf", "source": {"type": "journal"}},
  {"pdf_url": "http://%[1]s/repo.pdf", "source": {"type": "repository"}}
]}`, r.Host)
		case r.URL.Path == "/repo.pdf":
			servePDF(w)
		case r.URL.Path == "/publisher.pdf":
			t.Error("journal-hosted location must be ignored")
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	restore := openAlexAPIBase
	openAlexAPIBase = srv.URL + "/works/"
	defer func() { openAlexAPIBase = restore }()

	s := &repositorySource{client: srv.Client(), userAgent: "test", email: "me@uni.edu"}
	dest := destPath(t)
	if err := s.Fetch(context.Background(), paperWithDOI("Archived", "10.1000/repo1"), dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	assertPDFOnDisk(t, dest)
}

func TestDOISource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/pdf" {
			t.Errorf("Accept = %q, want application/pdf", r.Header.Get("Accept"))
		}
		servePDF(w)
	}))
	defer srv.Close()

	restore := doiBase
	doiBase = srv.URL + "/"
	defer func() { doiBase = restore }()

	s := &doiSource{client: srv.Client(), userAgent: "test"}
	dest := destPath(t)
	if err := s.Fetch(context.Background(), paperWithDOI("Resolved", "10.1000/neg1"), dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	assertPDFOnDisk(t, dest)
}

func TestDownloadPDFRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html>paywall</html>")
	}))
	defer srv.Close()

	dest := destPath(t)
	if err := downloadPDF(context.Background(), srv.Client(), srv.URL, "test", dest); err == nil {
		t.Error("downloadPDF() accepted an HTML body")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("rejected download must not land on the final path")
	}
}

func TestDownloadPDFRejectsInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "stub") // fails both size and magic checks
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.pdf")
	if err := downloadPDF(context.Background(), srv.Client(), srv.URL, "test", dest); err == nil {
		t.Error("downloadPDF() accepted an invalid body")
	}

	// The temp file must be cleaned up too.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not clean after rejected download: %v", entries)
	}
}

func TestPDFLinks(t *testing.T) {
	page := `<html><body>
<a href="/full/paper.PDF">PDF</a>
<a href="https://cdn.example.org/render?type=pdf&amp;id=9">Render</a>
<a href="/about">About</a>
<a href="/full/paper.PDF">PDF again</a>
</body></html>`

	base, err := url.Parse("https://journal.example.org/article/10")
	if err != nil {
		t.Fatal(err)
	}
	links := pdfLinks(strings.NewReader(page), base)
	want := []string{
		"https://journal.example.org/full/paper.PDF",
		"https://cdn.example.org/render?type=pdf&id=9",
	}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestTitlesSimilar(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Graph Learning for Outbreak Forecasting", "Graph Learning for Outbreak Forecasting", true},
		{"Graph Learning for Outbreak Forecasting", "graph learning for outbreak forecasting.", true},
		{"Graph Learning for Outbreak Forecasting", "Totally Unrelated Work About Chemistry", false},
		{"", "anything", false},
	}
	for _, tt := range tests {
		if got := titlesSimilar(tt.a, tt.b); got != tt.want {
			t.Errorf("titlesSimilar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
