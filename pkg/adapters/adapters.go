// Package adapters is the provider registry. Each source name maps to a
// constructor; everything downstream works against contracts.Adapter and
// never imports a provider package directly.
package adapters

import (
	"fmt"
	"sort"

	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/adapters/cityparks"
	"github.com/citypulse/ingest/pkg/adapters/marquee"
	"github.com/citypulse/ingest/pkg/adapters/opendata"
	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
)

type factory func(cfg config.SourceConfig, scrape config.Scrape, logger *log.Logger) contracts.Adapter

var registry = map[string]factory{
	"cityparks": func(cfg config.SourceConfig, scrape config.Scrape, logger *log.Logger) contracts.Adapter {
		return cityparks.New(cfg, scrape, logger)
	},
	"opendata": func(cfg config.SourceConfig, scrape config.Scrape, logger *log.Logger) contracts.Adapter {
		return opendata.New(cfg, scrape, logger)
	},
	"marquee": func(cfg config.SourceConfig, _ config.Scrape, logger *log.Logger) contracts.Adapter {
		return marquee.New(cfg, logger)
	},
}

// Build constructs the adapter registered under name using its block
// from the configuration.
func Build(name string, cfg *config.Config, logger *log.Logger) (contracts.Adapter, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (known: %v)", name, Names())
	}
	return f(cfg.Sources[name], cfg.Scrape, logger), nil
}

// BuildEnabled constructs every registered adapter whose source block is
// enabled, in name order.
func BuildEnabled(cfg *config.Config, logger *log.Logger) []contracts.Adapter {
	var out []contracts.Adapter
	for _, name := range Names() {
		if !cfg.Sources[name].IsEnabled() {
			continue
		}
		adapter, err := Build(name, cfg, logger)
		if err != nil {
			continue
		}
		out = append(out, adapter)
	}
	return out
}

// Names lists the registered source names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
