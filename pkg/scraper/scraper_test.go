package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/storage"
)

// stubAdapter serves canned raw items and transforms them by rule:
// items marked "skip" skip, items marked "boom" panic, items marked
// "bad" fail, anything else becomes a valid event.
type stubAdapter struct {
	items    []contracts.Record
	fetchErr error
}

func (s *stubAdapter) Source() models.Source { return models.SourceCityParks }

func (s *stubAdapter) Fetch(_ context.Context, _ *http.Client, _ contracts.Window) ([]contracts.Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.items, nil
}

func (s *stubAdapter) Transform(raw contracts.Record) (*models.Event, error) {
	id, _ := raw["id"].(string)
	switch raw["kind"] {
	case "skip":
		return nil, contracts.Skipf("missing title")
	case "boom":
		panic("adapter bug")
	case "bad":
		return nil, fmt.Errorf("mangled payload")
	}
	return &models.Event{
		Title:        "Event " + id,
		StartTime:    time.Now().UTC().Add(24 * time.Hour),
		LocationName: "Somewhere",
		Category:     models.CategoryOutdoor,
		Source:       models.SourceCityParks,
		ExternalID:   "cityparks_" + id,
	}, nil
}

func item(id, kind string) contracts.Record {
	return contracts.Record{"id": id, "kind": kind}
}

func TestRunCountsSkipsAndDefects(t *testing.T) {
	adapter := &stubAdapter{items: []contracts.Record{
		item("1", "ok"),
		item("2", "skip"),
		item("3", "bad"),
		item("4", "boom"),
		item("5", "ok"),
	}}
	store := storage.NewMemory()
	r := NewRunner(adapter, store, false)

	result := r.Run(context.Background())
	if !result.OK() {
		t.Fatalf("run failed: %s", result.Error)
	}
	if result.Found != 5 {
		t.Errorf("Found = %d, want 5", result.Found)
	}
	if result.New != 2 {
		t.Errorf("New = %d, want 2", result.New)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2 (one defect, one panic)", result.Failed)
	}
	if store.Count() != 2 {
		t.Errorf("store has %d rows, want 2", store.Count())
	}
	if result.RunID == "" {
		t.Error("run id must be set")
	}
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	adapter := &stubAdapter{fetchErr: errors.New("connection refused")}
	store := storage.NewMemory()
	r := NewRunner(adapter, store, false)

	result := r.Run(context.Background())
	if result.OK() {
		t.Fatal("fetch failure must fail the run")
	}
	if result.Found != 0 || result.New != 0 || result.Updated != 0 {
		t.Errorf("fetch failure must zero the counts, got %+v", result)
	}
	if store.Count() != 0 {
		t.Error("nothing may be written after a fetch failure")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	adapter := &stubAdapter{items: []contracts.Record{
		item("1", "ok"), item("2", "ok"), item("3", "ok"),
	}}
	store := storage.NewMemory()

	first := NewRunner(adapter, store, false).Run(context.Background())
	if first.New != 3 || first.Updated != 0 {
		t.Fatalf("first run: New=%d Updated=%d, want 3/0", first.New, first.Updated)
	}

	second := NewRunner(adapter, store, false).Run(context.Background())
	if second.New != 0 || second.Updated != 3 {
		t.Fatalf("second run: New=%d Updated=%d, want 0/3", second.New, second.Updated)
	}
	if store.Count() != 3 {
		t.Errorf("store has %d rows after rerun, want 3", store.Count())
	}
}

func TestLoaderDryRunWritesNothing(t *testing.T) {
	adapter := &stubAdapter{items: []contracts.Record{item("1", "ok"), item("2", "ok")}}
	store := storage.NewMemory()

	result := NewRunner(adapter, store, true).Run(context.Background())
	if result.New != 2 {
		t.Errorf("dry run New = %d, want 2", result.New)
	}
	if store.Count() != 0 {
		t.Errorf("dry run wrote %d rows", store.Count())
	}
}

func TestLoaderIsolatesWriteFailures(t *testing.T) {
	adapter := &stubAdapter{items: []contracts.Record{
		item("1", "ok"), item("2", "ok"), item("3", "ok"),
	}}
	store := storage.NewMemory()
	store.FailOn["cityparks_2"] = true

	result := NewRunner(adapter, store, false).Run(context.Background())
	if result.New != 2 {
		t.Errorf("New = %d, want 2", result.New)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if store.Count() != 2 {
		t.Errorf("store has %d rows, want 2", store.Count())
	}
}

func TestLoaderUpdatesExistingRow(t *testing.T) {
	store := storage.NewMemory()
	ev := &models.Event{
		Title:        "Original",
		StartTime:    time.Now().UTC(),
		LocationName: "Park",
		Category:     models.CategoryOutdoor,
		Source:       models.SourceCityParks,
		ExternalID:   "cityparks_77",
	}
	loader := NewLoader(store, false, nil)
	if n, u, f := loader.Load(context.Background(), []*models.Event{ev}); n != 1 || u != 0 || f != 0 {
		t.Fatalf("first load = (%d, %d, %d)", n, u, f)
	}

	ev2 := *ev
	ev2.Title = "Renamed"
	if n, u, f := loader.Load(context.Background(), []*models.Event{&ev2}); n != 0 || u != 1 || f != 0 {
		t.Fatalf("second load = (%d, %d, %d)", n, u, f)
	}
	got, ok := store.Get(models.SourceCityParks, "cityparks_77")
	if !ok || got.Title != "Renamed" {
		t.Errorf("stored title = %q, want Renamed", got.Title)
	}
	if store.Count() != 1 {
		t.Errorf("store has %d rows, want 1", store.Count())
	}
}
