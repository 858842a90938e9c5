package marquee

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
)

func testAdapter(baseURL, apiKey string) *Adapter {
	return New(config.SourceConfig{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		MetroID:  "345",
		PageSize: 100,
		MaxPages: 5,
	}, nil)
}

func window() contracts.Window {
	return contracts.WindowFrom(time.Now().UTC(), 30)
}

func TestFetchWithoutKeyIsConfigError(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	for _, key := range []string{"", "your-api-key-here"} {
		a := testAdapter(srv.URL, key)
		_, err := a.Fetch(context.Background(), srv.Client(), window())
		if !errors.Is(err, contracts.ErrConfig) {
			t.Errorf("key %q: err = %v, want ErrConfig", key, err)
		}
	}
	if requests != 0 {
		t.Errorf("%d requests made without a key", requests)
	}
}

func TestFetchPaginates(t *testing.T) {
	pages := [][]string{
		{"ev-1", "ev-2"},
		{"ev-3"},
	}
	var gotParams []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotParams = append(gotParams, map[string]string{
			"apikey": q.Get("apikey"),
			"dmaId":  q.Get("dmaId"),
			"page":   q.Get("page"),
			"sort":   q.Get("sort"),
		})
		page := 0
		fmt.Sscanf(q.Get("page"), "%d", &page)
		events := ""
		for i, id := range pages[page] {
			if i > 0 {
				events += ","
			}
			events += fmt.Sprintf(`{"id": %q, "name": "Show %s"}`, id, id)
		}
		fmt.Fprintf(w, `{"_embedded": {"events": [%s]}, "page": {"totalPages": 2}}`, events)
	}))
	defer srv.Close()

	a := testAdapter(srv.URL, "k123")
	items, err := a.Fetch(context.Background(), srv.Client(), window())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items across pages, want 3", len(items))
	}
	if len(gotParams) != 2 {
		t.Fatalf("made %d requests, want 2", len(gotParams))
	}
	if gotParams[0]["apikey"] != "k123" || gotParams[0]["dmaId"] != "345" {
		t.Errorf("first request params = %v", gotParams[0])
	}
	if gotParams[1]["page"] != "1" {
		t.Errorf("second request page = %q, want 1", gotParams[1]["page"])
	}
}

func TestFetchStopsOnEmptyPage(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"page": {"totalPages": 0}}`)
	}))
	defer srv.Close()

	a := testAdapter(srv.URL, "k123")
	items, err := a.Fetch(context.Background(), srv.Client(), window())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 0 || requests != 1 {
		t.Errorf("items = %d, requests = %d", len(items), requests)
	}
}

func sampleEvent() contracts.Record {
	return contracts.Record{
		"id":   "vvG1iZ94BMe-4U",
		"name": "Midtown Jazz Night",
		"url":  "https://tickets.example.org/midtown-jazz",
		"info": "Doors at 7.",
		"dates": map[string]any{
			"start": map[string]any{
				"dateTime":  "2026-07-04T23:00:00Z",
				"localDate": "2026-07-04",
				"localTime": "19:00:00",
			},
			"status": map[string]any{"code": "onsale"},
		},
		"priceRanges": []any{
			map[string]any{"min": 35.0, "max": 120.0},
		},
		"classifications": []any{
			map[string]any{
				"segment":  map[string]any{"name": "Music"},
				"genre":    map[string]any{"name": "Jazz"},
				"subGenre": map[string]any{"name": "Bebop"},
			},
		},
		"images": []any{
			map[string]any{"ratio": "3_2", "width": 1024.0, "url": "https://img.example.org/3x2.jpg"},
			map[string]any{"ratio": "16_9", "width": 640.0, "url": "https://img.example.org/small.jpg"},
			map[string]any{"ratio": "16_9", "width": 2048.0, "url": "https://img.example.org/large.jpg"},
		},
		"sales": map[string]any{
			"public": map[string]any{"startDateTime": "2026-05-01T14:00:00Z"},
		},
		"_embedded": map[string]any{
			"venues": []any{
				map[string]any{
					"name":    "Blue Note",
					"city":    map[string]any{"name": "New York"},
					"state":   map[string]any{"stateCode": "NY"},
					"address": map[string]any{"line1": "131 W 3rd St"},
					"location": map[string]any{
						"latitude":  "40.7306",
						"longitude": "-74.0004",
					},
				},
			},
		},
	}
}

func TestTransform(t *testing.T) {
	a := testAdapter("http://unused", "k123")
	ev, err := a.Transform(sampleEvent())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if ev.Title != "Midtown Jazz Night" {
		t.Errorf("title = %q", ev.Title)
	}
	if !ev.StartTime.Equal(time.Date(2026, 7, 4, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", ev.StartTime)
	}
	if ev.LocationName != "Blue Note" {
		t.Errorf("location = %q", ev.LocationName)
	}
	if ev.Address != "131 W 3rd St, New York, NY" {
		t.Errorf("address = %q", ev.Address)
	}
	if ev.Neighborhood != "New York" {
		t.Errorf("neighborhood = %q", ev.Neighborhood)
	}
	if ev.Category != models.CategoryCulture {
		t.Errorf("category = %q, want culture (jazz genre)", ev.Category)
	}
	if ev.PriceMin != 35 || ev.PriceMax == nil || *ev.PriceMax != 120 {
		t.Errorf("prices = %d / %v", ev.PriceMin, ev.PriceMax)
	}
	if ev.ExternalID != "marquee_vvG1iZ94BMe-4U" {
		t.Errorf("external id = %q", ev.ExternalID)
	}
	if ev.ImageURL != "https://img.example.org/large.jpg" {
		t.Errorf("image = %q, want the widest 16:9", ev.ImageURL)
	}
	if ev.Latitude == nil || ev.Longitude == nil {
		t.Error("venue coordinates lost")
	}
	if ev.Metadata["on_sale_start"] != "2026-05-01T14:00:00Z" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
	want := map[string]bool{"music": false, "jazz": false, "bebop": false}
	for _, tag := range ev.Tags {
		if _, ok := want[tag]; ok {
			want[tag] = true
		}
	}
	for tag, seen := range want {
		if !seen {
			t.Errorf("tags %v missing %q", ev.Tags, tag)
		}
	}
	if err := ev.Validate(); err != nil {
		t.Errorf("transformed event invalid: %v", err)
	}
}

func TestTransformLocalDateFallback(t *testing.T) {
	a := testAdapter("http://unused", "k123")
	raw := sampleEvent()
	raw["dates"] = map[string]any{
		"start": map[string]any{"localDate": "2026-07-04", "localTime": "19:00:00"},
	}
	ev, err := a.Transform(raw)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !ev.StartTime.Equal(time.Date(2026, 7, 4, 19, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want local date+time", ev.StartTime)
	}
}

func TestTransformSkips(t *testing.T) {
	a := testAdapter("http://unused", "k123")

	raw := sampleEvent()
	delete(raw, "id")
	if _, err := a.Transform(raw); !errors.Is(err, contracts.ErrSkip) {
		t.Errorf("missing id: err = %v", err)
	}

	raw = sampleEvent()
	delete(raw, "dates")
	if _, err := a.Transform(raw); !errors.Is(err, contracts.ErrSkip) {
		t.Errorf("missing dates: err = %v", err)
	}

	raw = sampleEvent()
	raw["_embedded"] = map[string]any{
		"venues": []any{
			map[string]any{
				"name":  "Prudential Center",
				"city":  map[string]any{"name": "Newark"},
				"state": map[string]any{"stateCode": "NJ"},
			},
		},
	}
	if _, err := a.Transform(raw); !errors.Is(err, contracts.ErrSkip) {
		t.Errorf("out-of-state venue: err = %v", err)
	}
}

func TestTransformKeepsVenuelessEvent(t *testing.T) {
	a := testAdapter("http://unused", "k123")
	raw := sampleEvent()
	delete(raw, "_embedded")
	ev, err := a.Transform(raw)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if ev.LocationName != "Venue TBA" {
		t.Errorf("location = %q, want the placeholder", ev.LocationName)
	}
	if err := ev.Validate(); err != nil {
		t.Errorf("venueless event invalid: %v", err)
	}
}
