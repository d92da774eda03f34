// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"strings"
	"testing"

	"github.com/pdiddy/litsearch/pkg/types"
)

func TestFilenameFromDOI(t *testing.T) {
	p := types.Paper{
		Title: "Some Title",
		DOI:   types.StringPtr("10.1145/3292500.3330701"),
	}
	want := "10.1145-3292500.3330701.pdf"
	if got := Filename(p); got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func TestFilenameDOICaseInsensitive(t *testing.T) {
	lower := types.Paper{DOI: types.StringPtr("10.1000/abc")}
	upper := types.Paper{DOI: types.StringPtr("10.1000/ABC")}
	if Filename(lower) != Filename(upper) {
		t.Error("DOI filenames must be case-insensitive")
	}
}

func TestFilenameFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"West Nile Virus: A Review!", "west_nile_virus_a_review.pdf"},
		{"  spaced   out  ", "spaced_out.pdf"},
		{"???", "untitled.pdf"},
		{"", "untitled.pdf"},
	}
	for _, tt := range tests {
		if got := Filename(types.Paper{Title: tt.title}); got != tt.want {
			t.Errorf("Filename(title=%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestFilenameDeterministic(t *testing.T) {
	p := types.Paper{Title: "Stable Naming Across Runs"}
	if Filename(p) != Filename(p) {
		t.Error("Filename must be deterministic")
	}
}

func TestFilenameClampsLongTitles(t *testing.T) {
	p := types.Paper{Title: strings.Repeat("word ", 60)}
	got := Filename(p)
	if len(got) > maxStemLen+len(".pdf") {
		t.Errorf("filename too long: %d bytes", len(got))
	}
	if strings.HasSuffix(strings.TrimSuffix(got, ".pdf"), "_") {
		t.Errorf("clamped stem ends with separator: %q", got)
	}
}
