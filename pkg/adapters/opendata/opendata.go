// Package opendata ingests the municipal open-data portal's permitted
// events dataset (street fairs, parades, festivals) through its SODA
// API. The API supports a start-time filter server-side; the borough
// allow-list and the window upper bound are applied client-side.
package opendata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/adapters/fetch"
	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/normalize"
)

type Adapter struct {
	baseURL    string
	dataset    string
	appToken   string
	pageSize   int
	regions    *normalize.RegionFilter
	categories *normalize.CategoryTable
	logger     *log.Logger
}

func New(cfg config.SourceConfig, scrape config.Scrape, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	appToken := ""
	if cfg.HasAPIKey() {
		appToken = cfg.APIKey
	}
	return &Adapter{
		baseURL:  cfg.BaseURL,
		dataset:  cfg.Dataset,
		appToken: appToken,
		pageSize: cfg.PageSize,
		regions:  normalize.NewRegionFilter(scrape.AllowedRegions, scrape.RetainUnknown()),
		categories: normalize.NewCategoryTable(models.CategoryCulture,
			normalize.CategoryRule{Keyword: "street fair", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "festival", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "parade", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "block party", Category: models.CategoryNetworking},
			normalize.CategoryRule{Keyword: "farmers market", Category: models.CategoryFood},
			normalize.CategoryRule{Keyword: "market", Category: models.CategoryFood},
			normalize.CategoryRule{Keyword: "marathon", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "race", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "run", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "walk", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "concert", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "music", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "rally", Category: models.CategoryProfessional},
			normalize.CategoryRule{Keyword: "protest", Category: models.CategoryProfessional},
		),
		logger: logger,
	}
}

func (a *Adapter) Source() models.Source {
	return models.SourceOpenData
}

func (a *Adapter) endpoint() string {
	return fmt.Sprintf("%s/resource/%s.json", a.baseURL, a.dataset)
}

func (a *Adapter) Fetch(ctx context.Context, client *http.Client, window contracts.Window) ([]contracts.Record, error) {
	params := url.Values{}
	params.Set("$where", fmt.Sprintf("start_date_time >= '%s'", window.Start.Format("2006-01-02T15:04:05")))
	params.Set("$limit", strconv.Itoa(a.pageSize))
	params.Set("$order", "start_date_time ASC")
	if a.appToken != "" {
		params.Set("$$app_token", a.appToken)
	}

	items, err := fetch.GetJSON[[]map[string]any](ctx, client, a.endpoint(), params)
	if err != nil {
		return nil, err
	}

	var out []contracts.Record
	for _, item := range items {
		if !a.regions.Admit(normalize.FirstString(item, "event_borough")) {
			continue
		}
		start, ok := normalize.ParseDateTime(normalize.FirstString(item, "start_date_time"))
		if !ok || start.After(window.End) {
			continue
		}
		out = append(out, item)
	}
	a.logger.Info().Int("kept", len(out)).Int("total", len(items)).
		Msg("opendata: borough and window filter applied")
	return out, nil
}

func (a *Adapter) Transform(raw contracts.Record) (*models.Event, error) {
	title := normalize.FirstString(raw, "event_name")
	if title == "" {
		return nil, contracts.Skipf("missing event_name")
	}

	startStr := normalize.FirstString(raw, "start_date_time")
	start, ok := normalize.ParseDateTime(startStr)
	if !ok {
		return nil, contracts.Skipf("unparseable start_date_time %q", startStr)
	}

	eventType := normalize.FirstString(raw, "event_type")
	neighborhood := titleWords(normalize.FirstString(raw, "event_borough"))
	location := a.locationName(raw)

	externalID := ""
	if id := normalize.FirstString(raw, "event_id"); id != "" {
		externalID = normalize.ExternalID(models.SourceOpenData, id)
	} else {
		externalID = normalize.FallbackExternalID(models.SourceOpenData, title, startStr, location)
	}

	tags := []string{"free", "street event", "public"}
	if neighborhood != "" {
		tags = append(tags, strings.ToLower(neighborhood))
	}
	if t := strings.ToLower(eventType); t != "" {
		tags = append(tags, t)
	}

	metadata := map[string]any{}
	for _, k := range []string{"event_type", "event_agency", "police_precinct"} {
		if v := normalize.FirstString(raw, k); v != "" {
			metadata[k] = v
		}
	}

	zero := 0
	ev := &models.Event{
		Title:        title,
		Description:  a.description(raw),
		StartTime:    start,
		LocationName: location,
		Address:      a.address(raw),
		Neighborhood: neighborhood,
		Category:     a.categories.MapAny(eventType, title),
		PriceMin:     0,
		PriceMax:     &zero,
		Source:       models.SourceOpenData,
		ExternalID:   externalID,
		Tags:         tags,
		Metadata:     metadata,
	}
	if t, ok := normalize.ParseDateTime(normalize.FirstString(raw, "end_date_time")); ok && t.After(start) {
		ev.EndTime = &t
	}
	return ev, nil
}

// titleWords capitalizes each word; the dataset reports boroughs in
// all caps ("STATEN ISLAND").
func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// locationName assembles a readable place from the dataset's street
// geometry fields.
func (a *Adapter) locationName(raw contracts.Record) string {
	var parts []string
	if v := normalize.FirstString(raw, "event_location"); v != "" {
		parts = append(parts, v)
	}
	if v := normalize.FirstString(raw, "event_street_side"); v != "" {
		parts = append(parts, v)
	}
	from := normalize.FirstString(raw, "from_street")
	to := normalize.FirstString(raw, "to_street")
	switch {
	case from != "" && to != "":
		parts = append(parts, fmt.Sprintf("from %s to %s", from, to))
	case from != "":
		parts = append(parts, "at "+from)
	}
	if len(parts) == 0 {
		return "City Street Event"
	}
	return strings.Join(parts, ", ")
}

func (a *Adapter) address(raw contracts.Record) string {
	var parts []string
	if v := normalize.FirstString(raw, "event_location"); v != "" {
		parts = append(parts, v)
	}
	if b := normalize.FirstString(raw, "event_borough"); b != "" {
		parts = append(parts, b, "NY")
	}
	return strings.Join(parts, ", ")
}

// description synthesizes a summary; the dataset has no free-text one.
func (a *Adapter) description(raw contracts.Record) string {
	var parts []string
	if v := normalize.FirstString(raw, "event_type"); v != "" {
		parts = append(parts, "Event type: "+v)
	}
	if v := normalize.FirstString(raw, "event_agency"); v != "" {
		parts = append(parts, "Sponsored by: "+v)
	}
	from := normalize.FirstString(raw, "from_street")
	to := normalize.FirstString(raw, "to_street")
	if from != "" && to != "" {
		parts = append(parts, fmt.Sprintf("From %s to %s", from, to))
	}
	if v := normalize.FirstString(raw, "police_precinct"); v != "" {
		parts = append(parts, "Police Precinct: "+v)
	}
	if len(parts) == 0 {
		return "Permitted public event"
	}
	return strings.Join(parts, ". ")
}
