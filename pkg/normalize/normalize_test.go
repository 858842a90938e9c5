package normalize

import (
	"strings"
	"testing"

	"github.com/citypulse/ingest/pkg/models"
)

func TestCategoryTable(t *testing.T) {
	table := NewCategoryTable(models.CategoryOutdoor,
		CategoryRule{Keyword: "sports", Category: models.CategoryFitness},
		CategoryRule{Keyword: "arts", Category: models.CategoryCulture},
		CategoryRule{Keyword: "music", Category: models.CategoryNightlife},
	)
	cases := []struct {
		in   string
		want models.Category
	}{
		{"sports", models.CategoryFitness},
		{"SPORTS", models.CategoryFitness},
		{"Arts & Crafts", models.CategoryCulture},
		{"live music night", models.CategoryNightlife},
		{"", models.CategoryOutdoor},
		{"gardening", models.CategoryOutdoor},
	}
	for _, c := range cases {
		if got := table.Map(c.in); got != c.want {
			t.Errorf("Map(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCategoryTableOrder(t *testing.T) {
	// Exact matches beat earlier substring rules.
	table := NewCategoryTable(models.CategoryCulture,
		CategoryRule{Keyword: "art", Category: models.CategoryCulture},
		CategoryRule{Keyword: "martial arts", Category: models.CategoryFitness},
	)
	if got := table.Map("martial arts"); got != models.CategoryFitness {
		t.Errorf("Map(martial arts) = %q, want fitness", got)
	}
}

func TestCategoryTableMapAny(t *testing.T) {
	table := NewCategoryTable(models.CategoryCulture,
		CategoryRule{Keyword: "parade", Category: models.CategoryCulture},
		CategoryRule{Keyword: "race", Category: models.CategoryFitness},
	)
	if got := table.MapAny("Street Closure", "Fun Race 5K"); got != models.CategoryFitness {
		t.Errorf("MapAny fell through to %q, want fitness", got)
	}
	if got := table.MapAny("", "nothing matches"); got != models.CategoryCulture {
		t.Errorf("MapAny = %q, want the fallback", got)
	}
}

func TestBoroughFromName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Prospect Park, Brooklyn", "Brooklyn"},
		{"central park manhattan", "Manhattan"},
		{"Flushing Meadows (Queens)", "Queens"},
		{"Clove Lakes Park, Staten Island", "Staten Island"},
		{"Somewhere Else", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := BoroughFromName(c.in); got != c.want {
			t.Errorf("BoroughFromName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBoroughFromParkCode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"M010", "Manhattan"},
		{"B057", "Brooklyn"},
		{"q123", "Queens"},
		{"X002", "Bronx"},
		{"R044", "Staten Island"},
		{"Z999", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := BoroughFromParkCode(c.in); got != c.want {
			t.Errorf("BoroughFromParkCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRegionFilter(t *testing.T) {
	f := NewRegionFilter([]string{"Manhattan", "Brooklyn"}, true)
	if !f.Admit("Manhattan") || !f.Admit("Brooklyn") {
		t.Error("allowed boroughs must be admitted")
	}
	if !f.Admit("MANHATTAN") || !f.Admit("brooklyn") {
		t.Error("borough casing must not matter")
	}
	if f.Admit("Queens") || f.Admit("QUEENS") {
		t.Error("recognized but disallowed borough must be excluded")
	}
	if !f.Admit("") || !f.Admit("Hoboken") {
		t.Error("unknown region must be retained when retainUnknown is set")
	}

	strict := NewRegionFilter([]string{"Manhattan"}, false)
	if strict.Admit("") {
		t.Error("unknown region must be excluded when retainUnknown is unset")
	}
}

func TestExternalID(t *testing.T) {
	if got := ExternalID(models.SourceCityParks, "E123"); got != "cityparks_E123" {
		t.Errorf("ExternalID = %q", got)
	}
	if got := ExternalID(models.SourceMarquee, 42); got != "marquee_42" {
		t.Errorf("ExternalID with numeric id = %q", got)
	}
}

func TestFallbackExternalIDDeterministic(t *testing.T) {
	a := FallbackExternalID(models.SourceOpenData, "Summer Fair", "2026-06-15", "5th Ave")
	b := FallbackExternalID(models.SourceOpenData, "Summer Fair", "2026-06-15", "5th Ave")
	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "opendata_") {
		t.Errorf("id %q missing source prefix", a)
	}
	if len(a) != len("opendata_")+12 {
		t.Errorf("id %q has unexpected length", a)
	}
	c := FallbackExternalID(models.SourceOpenData, "Summer Fair", "2026-06-16", "5th Ave")
	if a == c {
		t.Error("different start strings must produce different ids")
	}
}

func TestFirstString(t *testing.T) {
	rec := map[string]any{
		"empty": "",
		"blank": "   ",
		"list":  []any{"first", "second"},
		"name":  " Central Park ",
		"num":   7,
	}
	if got := FirstString(rec, "missing", "empty", "blank", "name"); got != "Central Park" {
		t.Errorf("FirstString = %q", got)
	}
	if got := FirstString(rec, "list"); got != "first" {
		t.Errorf("FirstString list = %q", got)
	}
	if got := FirstString(rec, "nope"); got != "" {
		t.Errorf("FirstString missing = %q", got)
	}
}

func TestCoordinates(t *testing.T) {
	lat, lng := Coordinates(map[string]any{"lat": "40.7", "lng": "-73.9"})
	if lat == nil || *lat != 40.7 {
		t.Errorf("lat = %v", lat)
	}
	if lng == nil || *lng != -73.9 {
		t.Errorf("lng = %v", lng)
	}

	lat, lng = Coordinates(map[string]any{
		"location": map[string]any{"latitude": 40.75, "longitude": -73.98},
	})
	if lat == nil || lng == nil {
		t.Fatal("nested location coordinates not found")
	}

	lat, lng = Coordinates(map[string]any{"latitude": 95.0, "longitude": -200.0})
	if lat != nil || lng != nil {
		t.Error("out-of-range coordinates must be rejected")
	}

	lat, lng = Coordinates(map[string]any{"latitude": 40.7})
	if lat == nil || lng != nil {
		t.Error("either side may be present independently")
	}
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://example.org"
	cases := []struct{ in, want string }{
		{"", ""},
		{"https://cdn.example.org/x.jpg", "https://cdn.example.org/x.jpg"},
		{"/events/1", "https://example.org/events/1"},
		{"events/1", "https://example.org/events/1"},
	}
	for _, c := range cases {
		if got := AbsoluteURL(base, c.in); got != c.want {
			t.Errorf("AbsoluteURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
