// Package cityparks ingests the city parks department's public event
// feed. Every event in the feed is a free outdoor activity; the feed
// carries no provider-side filters, so the date window and the borough
// allow-list are applied client-side.
package cityparks

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/adapters/fetch"
	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/normalize"
)

const eventsPath = "/feeds/events_300.json"

type Adapter struct {
	baseURL    string
	regions    *normalize.RegionFilter
	categories *normalize.CategoryTable
	logger     *log.Logger
}

func New(cfg config.SourceConfig, scrape config.Scrape, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Adapter{
		baseURL: cfg.BaseURL,
		regions: normalize.NewRegionFilter(scrape.AllowedRegions, scrape.RetainUnknown()),
		categories: normalize.NewCategoryTable(models.CategoryOutdoor,
			normalize.CategoryRule{Keyword: "sports", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "fitness", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "nature", Category: models.CategoryOutdoor},
			normalize.CategoryRule{Keyword: "education", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "arts", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "culture", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "music", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "volunteer", Category: models.CategoryNetworking},
			normalize.CategoryRule{Keyword: "tours", Category: models.CategoryOutdoor},
			normalize.CategoryRule{Keyword: "kids", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "seniors", Category: models.CategoryCulture},
		),
		logger: logger,
	}
}

func (a *Adapter) Source() models.Source {
	return models.SourceCityParks
}

// Fetch pulls the whole feed, then drops items outside the window and
// items whose borough is recognized but not allowed. Items with no
// parseable start date cannot be windowed and are dropped here too.
func (a *Adapter) Fetch(ctx context.Context, client *http.Client, window contracts.Window) ([]contracts.Record, error) {
	data, err := fetch.GetJSON[any](ctx, client, a.baseURL+eventsPath, nil)
	if err != nil {
		return nil, err
	}
	items := fetch.Items(data, "events")
	var out []contracts.Record
	for _, item := range items {
		dateStr := normalize.FirstString(item, "startdate", "date", "start_date")
		if dateStr == "" {
			continue
		}
		start, ok := normalize.ParseDateTime(dateStr)
		if !ok || start.Before(window.Start) || start.After(window.End) {
			continue
		}
		if !a.regions.Admit(borough(item)) {
			continue
		}
		out = append(out, item)
	}
	a.logger.Info().Int("kept", len(out)).Int("total", len(items)).
		Msg("cityparks: window and borough filter applied")
	return out, nil
}

func (a *Adapter) Transform(raw contracts.Record) (*models.Event, error) {
	title := normalize.FirstString(raw, "title", "name")
	if title == "" {
		return nil, contracts.Skipf("missing title")
	}

	dateStr := normalize.FirstString(raw, "startdate", "date", "start_date")
	start, ok := normalize.ParseDateTime(dateStr)
	if !ok {
		return nil, contracts.Skipf("unparseable start date %q", dateStr)
	}
	if h, m, ok := normalize.ParseClock(normalize.FirstString(raw, "starttime", "start_time", "time")); ok {
		start = normalize.At(start, h, m)
	}
	end := a.endTime(raw, start)

	location := normalize.FirstString(raw, "parknames", "park_name", "location")
	if location == "" {
		location = "City Park"
	}
	lat, lng := normalize.Coordinates(raw)

	externalID := ""
	if id := normalize.FirstString(raw, "id", "event_id", "uid"); id != "" {
		externalID = normalize.ExternalID(models.SourceCityParks, id)
	} else {
		externalID = normalize.FallbackExternalID(models.SourceCityParks, title, dateStr, location)
	}

	rawCategory := normalize.FirstString(raw, "category", "type", "categories")
	b := borough(raw)

	tags := []string{"free", "outdoor", "parks"}
	if b != "" {
		tags = append(tags, strings.ToLower(b))
	}
	if rawCategory != "" && strings.ToLower(rawCategory) != "outdoor" {
		tags = append(tags, strings.ToLower(rawCategory))
	}

	metadata := map[string]any{}
	if b != "" {
		metadata["borough"] = b
	}
	for _, k := range []string{"contact", "requirements", "age_group"} {
		if v := normalize.FirstString(raw, k); v != "" {
			metadata[k] = v
		}
	}

	zero := 0
	return &models.Event{
		Title:        title,
		Description:  normalize.FirstString(raw, "description", "desc"),
		StartTime:    start,
		EndTime:      end,
		LocationName: location,
		Address:      normalize.FirstString(raw, "address", "location_address"),
		Latitude:     lat,
		Longitude:    lng,
		Neighborhood: b,
		Category:     a.categories.Map(rawCategory),
		PriceMin:     0,
		PriceMax:     &zero,
		Source:       models.SourceCityParks,
		ExternalID:   externalID,
		ExternalURL:  normalize.AbsoluteURL(a.baseURL, normalize.FirstString(raw, "url", "link", "external_url")),
		ImageURL:     normalize.AbsoluteURL(a.baseURL, normalize.FirstString(raw, "image", "image_url", "photo")),
		Tags:         tags,
		Metadata:     metadata,
	}, nil
}

// endTime combines the feed's optional end date and end time. An end
// clock without an end date means the same day; a same-day end at or
// before the start rolls over to the next day.
func (a *Adapter) endTime(raw contracts.Record, start time.Time) *time.Time {
	endDateStr := normalize.FirstString(raw, "enddate", "end_date")
	endTimeStr := normalize.FirstString(raw, "endtime", "end_time")

	var end time.Time
	switch {
	case endDateStr != "":
		t, ok := normalize.ParseDateTime(endDateStr)
		if !ok {
			return nil
		}
		end = t
		if h, m, ok := normalize.ParseClock(endTimeStr); ok {
			end = normalize.At(end, h, m)
		}
	case endTimeStr != "":
		h, m, ok := normalize.ParseClock(endTimeStr)
		if !ok {
			return nil
		}
		end = normalize.At(start, h, m)
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}
	default:
		return nil
	}
	if !end.After(start) {
		return nil
	}
	return &end
}

// borough resolves the event borough from the direct field, the park
// facility ID prefix, or the park name, in that order.
func borough(raw contracts.Record) string {
	if b := normalize.FirstString(raw, "borough"); b != "" {
		return b
	}
	if code := normalize.FirstString(raw, "parkids", "parkid"); code != "" {
		if b := normalize.BoroughFromParkCode(code); b != "" {
			return b
		}
	}
	return normalize.BoroughFromName(normalize.FirstString(raw, "parknames", "park_name", "location"))
}

