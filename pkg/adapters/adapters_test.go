package adapters

import (
	"testing"

	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/models"
)

func TestNames(t *testing.T) {
	got := Names()
	want := []string{"cityparks", "marquee", "opendata"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	for _, name := range Names() {
		adapter, err := Build(name, cfg, nil)
		if err != nil {
			t.Errorf("Build(%s): %v", name, err)
			continue
		}
		if string(adapter.Source()) != name {
			t.Errorf("Build(%s) reports source %q", name, adapter.Source())
		}
	}
	if _, err := Build("nosuch", cfg, nil); err == nil {
		t.Error("unknown name must fail")
	}
}

func TestBuildEnabledHonorsFlags(t *testing.T) {
	cfg := config.Default()
	off := false
	src := cfg.Sources["opendata"]
	src.Enabled = &off
	cfg.Sources["opendata"] = src

	built := BuildEnabled(cfg, nil)
	if len(built) != 2 {
		t.Fatalf("built %d adapters, want 2", len(built))
	}
	for _, a := range built {
		if a.Source() == models.SourceOpenData {
			t.Error("disabled source must not be built")
		}
	}
}
