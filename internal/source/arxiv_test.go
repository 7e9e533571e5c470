// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/arxiv-digest/pkg/types"
)

const atomHeader = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query Results</title>`

func atomEntry(id, title, updated, category string) string {
	return fmt.Sprintf(`
  <entry>
    <id>http://arxiv.org/abs/%s</id>
    <updated>%s</updated>
    <published>%s</published>
    <title>%s</title>
    <summary>An abstract about transformers
      split over lines.</summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/%s" rel="alternate" type="text/html"/>
    <arxiv:primary_category term="%s"/>
    <category term="%s"/>
    <category term="cs.AI"/>
  </entry>`, id, updated, updated, title, id, category, category)
}

func serveAtom(t *testing.T, entries ...string) (*httptest.Server, func()) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomHeader)
		for _, e := range entries {
			fmt.Fprint(w, e)
		}
		fmt.Fprint(w, "\n</feed>")
	}))

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	return ts, func() {
		arxivAPIBase = old
		ts.Close()
	}
}

func testWindow() (time.Time, time.Time) {
	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func TestArxivSearchParsesEntries(t *testing.T) {
	_, cleanup := serveAtom(t,
		atomEntry("2608.01001v1", "Attention Is Enough", "2026-08-28T10:00:00Z", "cs.CL"),
		atomEntry("2608.01002v2", "Mamba Strikes Back", "2026-08-28T11:00:00Z", "cs.LG"),
	)
	defer cleanup()

	start, end := testWindow()
	src := &ArxivSource{HTTP: types.HTTPConfig{UserAgent: "test/0.1"}, Retry: types.RetryPolicy{MaxAttempts: 1}}
	got, err := src.Search(context.Background(), Request{
		Categories: []string{"cs.CL", "cs.LG"},
		Start:      start,
		End:        end,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != "2608.01002v2" {
		t.Errorf("got[0].ID = %s, want 2608.01002v2", got[0].ID)
	}
	c := got[1]
	if c.BaseID != "2608.01001" || c.Version != 1 {
		t.Errorf("BaseID/Version = %s/%d, want 2608.01001/1", c.BaseID, c.Version)
	}
	if c.PrimaryCategory != "cs.CL" {
		t.Errorf("PrimaryCategory = %s, want cs.CL", c.PrimaryCategory)
	}
	if len(c.Authors) != 2 || c.Authors[0] != "Ada Lovelace" {
		t.Errorf("Authors = %v", c.Authors)
	}
	if strings.Contains(c.Abstract, "\n") {
		t.Errorf("abstract not collapsed: %q", c.Abstract)
	}
}

func TestArxivSearchEnforcesWindow(t *testing.T) {
	_, cleanup := serveAtom(t,
		atomEntry("2608.01001v1", "Inside", "2026-08-28T10:00:00Z", "cs.CL"),
		atomEntry("2608.01002v1", "Too Old", "2026-08-27T23:59:00Z", "cs.CL"),
		atomEntry("2608.01003v1", "Boundary End", "2026-08-29T00:00:00Z", "cs.CL"),
	)
	defer cleanup()

	start, end := testWindow()
	src := &ArxivSource{Retry: types.RetryPolicy{MaxAttempts: 1}}
	got, err := src.Search(context.Background(), Request{Categories: []string{"cs.CL"}, Start: start, End: end})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(got) != 1 || got[0].ID != "2608.01001v1" {
		t.Fatalf("got %d candidates, want only the in-window entry: %+v", len(got), got)
	}
}

func TestArxivSearchDeduplicatesVersions(t *testing.T) {
	_, cleanup := serveAtom(t,
		atomEntry("2608.01001v1", "Paper", "2026-08-28T10:00:00Z", "cs.CL"),
		atomEntry("2608.01001v2", "Paper (revised)", "2026-08-28T12:00:00Z", "cs.CL"),
	)
	defer cleanup()

	start, end := testWindow()
	src := &ArxivSource{Retry: types.RetryPolicy{MaxAttempts: 1}}
	got, err := src.Search(context.Background(), Request{Categories: []string{"cs.CL"}, Start: start, End: end})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(got) != 1 || got[0].Version != 2 {
		t.Fatalf("got %+v, want single v2 candidate", got)
	}
}

func TestArxivSearchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	src := &ArxivSource{Retry: types.RetryPolicy{MaxAttempts: 1}}
	_, err := src.Search(context.Background(), Request{Categories: []string{"cs.CL"}})
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Fatalf("err = %v, want HTTP 500 error", err)
	}
}

func TestBuildArxivQuery(t *testing.T) {
	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	got := buildArxivQuery(Request{Categories: []string{"cs.CL", "cs.LG"}, Start: start, End: end})
	want := "(cat:cs.CL OR cat:cs.LG) AND lastUpdatedDate:[202608280000 TO 202608290000]"
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}

	if got := buildArxivQuery(Request{}); got != "all" {
		t.Errorf("empty request query = %q, want all", got)
	}
}
