package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/refscreen/refscreen/internal/record"
)

const workJSON = `{
  "message": {
    "DOI": "10.1000/xyz",
    "type": "journal-article",
    "title": ["Digital Innovation: A Review and Agenda"],
    "container-title": ["MIS Quarterly"],
    "author": [
      {"family": "Smith", "given": "John"},
      {"family": "Lee", "given": "Ana"}
    ],
    "issued": {"date-parts": [[2020]]},
    "volume": "44",
    "issue": "2",
    "page": "101--126"
  }
}`

const searchJSON = `{
  "message": {
    "items": [
      {
        "DOI": "10.1000/xyz",
        "type": "journal-article",
        "title": ["Digital Innovation: A Review and Agenda"],
        "container-title": ["MIS Quarterly"],
        "author": [
          {"family": "Smith", "given": "John"},
          {"family": "Lee", "given": "Ana"}
        ],
        "issued": {"date-parts": [[2020]]},
        "volume": "44",
        "issue": "2",
        "page": "101--126"
      }
    ]
  }
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestGetWork(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/works/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(workJSON))
	})

	work, err := client.GetWork(context.Background(), "10.1000/xyz")
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	if work.DOI != "10.1000/xyz" {
		t.Errorf("DOI = %q", work.DOI)
	}
	if got := work.Year(); got != "2020" {
		t.Errorf("Year() = %q, want 2020", got)
	}
	if got := work.Authors(); got != "Smith, John and Lee, Ana" {
		t.Errorf("Authors() = %q", got)
	}
}

func TestGetWork_NotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetWork(context.Background(), "10.1000/missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSearchWorks(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if q := r.URL.Query().Get("query.bibliographic"); q == "" {
			t.Error("missing bibliographic query")
		}
		w.Write([]byte(`{"message": {"items": [{"DOI": "10.1000/a", "type": "journal-article", "title": ["First Hit"]}]}}`))
	})

	works, err := client.SearchWorks(context.Background(), "first hit smith", 5)
	if err != nil {
		t.Fatalf("search works: %v", err)
	}
	if len(works) != 1 || works[0].DOI != "10.1000/a" {
		t.Fatalf("unexpected results: %+v", works)
	}
}

func TestEnrich_FillsEmptyFields(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(workJSON))
	})
	e := NewEnricher(client, nil)

	rec := &record.Record{
		ID:        "Smith2020",
		EntryType: "article",
		Status:    record.StatusImported,
		Title:     "Digital Innovation: A Review and Agenda",
		Author:    "Smith, John and Lee, Ana",
		Year:      "2020",
		DOI:       "10.1000/xyz",
		Origins:   []string{"dblp/1"},
	}

	changed, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !changed {
		t.Fatal("expected record to change")
	}
	if rec.Journal != "MIS Quarterly" {
		t.Errorf("journal = %q", rec.Journal)
	}
	if rec.Volume != "44" || rec.Number != "2" || rec.Pages != "101--126" {
		t.Errorf("volume/number/pages = %q/%q/%q", rec.Volume, rec.Number, rec.Pages)
	}
	if p, ok := rec.MasterdataProvenance["journal"]; !ok || p.Source != SourceName {
		t.Errorf("journal provenance = %+v", rec.MasterdataProvenance["journal"])
	}
}

func TestEnrich_DoesNotOverwriteCuratedFields(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(workJSON))
	})
	e := NewEnricher(client, nil)

	rec := &record.Record{
		ID:        "Smith2020",
		EntryType: "article",
		Status:    record.StatusImported,
		Title:     "Digital Innovation: A Review and Agenda",
		Author:    "Smith, John and Lee, Ana",
		Year:      "2020",
		Journal:   "MISQ",
		DOI:       "10.1000/xyz",
	}

	if _, err := e.Enrich(context.Background(), rec); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if rec.Journal != "MISQ" {
		t.Errorf("curated journal overwritten: %q", rec.Journal)
	}
}

func TestEnrich_RejectsDissimilarCandidate(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(workJSON))
	})
	e := NewEnricher(client, nil)

	rec := &record.Record{
		ID:        "Okafor1987",
		EntryType: "article",
		Status:    record.StatusImported,
		Title:     "A Totally Different Topic in Biology",
		Author:    "Okafor, Ada",
		Year:      "1987",
		DOI:       "10.1000/other",
	}

	changed, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if changed {
		t.Error("dissimilar candidate should not be applied")
	}
	if rec.Journal != "" {
		t.Errorf("journal set from rejected candidate: %q", rec.Journal)
	}
}

func TestEnrich_NotFoundLeavesRecordUntouched(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	e := NewEnricher(client, nil)

	rec := &record.Record{
		ID:     "Smith2020",
		Title:  "Digital Innovation",
		Author: "Smith, John",
		DOI:    "10.1000/gone",
	}
	changed, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("not-found must be non-fatal: %v", err)
	}
	if changed {
		t.Error("record changed despite failed lookup")
	}
}

func TestEnrich_ServerErrorLeavesRecordUntouched(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	e := NewEnricher(client, nil)

	rec := &record.Record{
		ID:     "A1",
		Title:  "Digital Innovation",
		Author: "Smith, John",
		DOI:    "10.1000/xyz",
	}
	changed, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("server error must degrade, not abort: %v", err)
	}
	if changed {
		t.Error("record changed despite failed lookup")
	}
}

func TestEnrich_NetworkErrorLeavesRecordUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	client := NewClient(WithBaseURL(srv.URL))
	e := NewEnricher(client, nil)

	rec := &record.Record{ID: "A1", Title: "Digital Innovation", DOI: "10.1000/xyz"}
	changed, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("network error must degrade, not abort: %v", err)
	}
	if changed {
		t.Error("record changed despite failed lookup")
	}
}

func TestEnrich_CancellationAborts(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(workJSON))
	})
	e := NewEnricher(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &record.Record{ID: "A1", Title: "Digital Innovation", DOI: "10.1000/xyz"}
	if _, err := e.Enrich(ctx, rec); err == nil {
		t.Fatal("cancelled context must abort the batch")
	}
}

func TestEnrich_SearchFallbackWithoutDOI(t *testing.T) {
	var sawSearch bool
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			t.Errorf("expected search endpoint, got %q", r.URL.Path)
		}
		sawSearch = true
		w.Write([]byte(searchJSON))
	})
	e := NewEnricher(client, nil)

	rec := &record.Record{
		ID:        "Smith2020",
		EntryType: "article",
		Title:     "Digital Innovation: A Review and Agenda",
		Author:    "Smith, John and Lee, Ana",
		Year:      "2020",
	}
	changed, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !sawSearch {
		t.Error("search endpoint never hit")
	}
	if !changed || rec.DOI != "10.1000/xyz" {
		t.Errorf("DOI not filled from search candidate: %q", rec.DOI)
	}
}
