// Package marquee ingests a commercial ticketing discovery API. The API
// is key-authed and paginated; events are scoped to a metro area by DMA
// ID server-side, then narrowed to the allowed city client-side through
// the venue record.
package marquee

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oarkflow/convert"
	"github.com/oarkflow/dipper"
	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/adapters/fetch"
	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
	"github.com/citypulse/ingest/pkg/normalize"
)

const eventsPath = "/discovery/v2/events.json"

type Adapter struct {
	baseURL  string
	apiKey   string
	metroID  string
	pageSize int
	maxPages int
	genres   *normalize.CategoryTable
	segments *normalize.CategoryTable
	logger   *log.Logger
}

func New(cfg config.SourceConfig, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	apiKey := ""
	if cfg.HasAPIKey() {
		apiKey = cfg.APIKey
	}
	return &Adapter{
		baseURL:  cfg.BaseURL,
		apiKey:   apiKey,
		metroID:  cfg.MetroID,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		genres: normalize.NewCategoryTable("",
			normalize.CategoryRule{Keyword: "rock", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "pop", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "hip-hop", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "rap", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "dance", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "electronic", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "jazz", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "classical", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "theatre", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "comedy", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "food", Category: models.CategoryFood},
			normalize.CategoryRule{Keyword: "wine", Category: models.CategoryFood},
		),
		segments: normalize.NewCategoryTable(models.CategoryCulture,
			normalize.CategoryRule{Keyword: "music", Category: models.CategoryNightlife},
			normalize.CategoryRule{Keyword: "sports", Category: models.CategoryFitness},
			normalize.CategoryRule{Keyword: "arts", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "theatre", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "film", Category: models.CategoryCulture},
			normalize.CategoryRule{Keyword: "miscellaneous", Category: models.CategoryCulture},
		),
		logger: logger,
	}
}

func (a *Adapter) Source() models.Source {
	return models.SourceMarquee
}

// Fetch walks the paginated listing until the provider reports the last
// page or the configured page cap is reached. A missing API key is a
// configuration failure detected before any request is made.
func (a *Adapter) Fetch(ctx context.Context, client *http.Client, window contracts.Window) ([]contracts.Record, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("%w: marquee API key not configured", contracts.ErrConfig)
	}

	var out []contracts.Record
	for page := 0; page < a.maxPages; page++ {
		params := url.Values{}
		params.Set("apikey", a.apiKey)
		params.Set("dmaId", a.metroID)
		params.Set("startDateTime", window.Start.UTC().Format("2006-01-02T15:04:05Z"))
		params.Set("endDateTime", window.End.UTC().Format("2006-01-02T15:04:05Z"))
		params.Set("size", strconv.Itoa(a.pageSize))
		params.Set("page", strconv.Itoa(page))
		params.Set("sort", "date,asc")

		data, err := fetch.GetJSON[map[string]any](ctx, client, a.baseURL+eventsPath, params)
		if err != nil {
			return nil, err
		}

		events, err := dipper.Get(data, "_embedded.events")
		if err != nil {
			break
		}
		list, ok := events.([]any)
		if !ok || len(list) == 0 {
			break
		}
		for _, item := range list {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}

		totalPages := 1
		if v, err := dipper.Get(data, "page.totalPages"); err == nil {
			if n, ok := convert.ToFloat64(v); ok {
				totalPages = int(n)
			}
		}
		if page+1 >= totalPages {
			break
		}
	}
	a.logger.Info().Int("found", len(out)).Msg("marquee: pages fetched")
	return out, nil
}

func (a *Adapter) Transform(raw contracts.Record) (*models.Event, error) {
	providerID := normalize.FirstString(raw, "id")
	if providerID == "" {
		return nil, contracts.Skipf("missing provider event id")
	}
	title := normalize.FirstString(raw, "name")
	if title == "" {
		return nil, contracts.Skipf("missing event name")
	}

	venue := a.venue(raw)
	if !a.inArea(venue) {
		return nil, contracts.Skipf("venue outside the service area")
	}

	start, ok := a.startTime(raw)
	if !ok {
		return nil, contracts.Skipf("no usable start time")
	}

	priceMin, priceMax := a.prices(raw)
	segment, genre, subGenre := a.classification(raw)

	tags := []string{}
	for _, t := range []string{segment, genre, subGenre} {
		if t != "" {
			tags = append(tags, strings.ToLower(t))
		}
	}

	metadata := map[string]any{}
	if v, err := dipper.Get(raw, "sales.public.startDateTime"); err == nil {
		if s, ok := convert.ToString(v); ok && s != "" {
			metadata["on_sale_start"] = s
		}
	}
	if v, err := dipper.Get(raw, "sales.public.endDateTime"); err == nil {
		if s, ok := convert.ToString(v); ok && s != "" {
			metadata["on_sale_end"] = s
		}
	}
	if v, err := dipper.Get(raw, "dates.status.code"); err == nil {
		if s, ok := convert.ToString(v); ok && s != "" {
			metadata["status"] = s
		}
	}

	lat, lng := normalize.Coordinates(venue)

	location := normalize.FirstString(venue, "name")
	if location == "" {
		location = "Venue TBA"
	}

	category := a.genres.Map(genre)
	if category == "" {
		category = a.segments.Map(segment)
	}

	ev := &models.Event{
		Title:        title,
		Description:  normalize.FirstString(raw, "info", "pleaseNote", "description"),
		StartTime:    start,
		LocationName: location,
		Address:      a.venueAddress(venue),
		Latitude:     lat,
		Longitude:    lng,
		Neighborhood: venueCity(venue),
		Category:     category,
		PriceMin:     priceMin,
		PriceMax:     priceMax,
		Source:       models.SourceMarquee,
		ExternalID:   normalize.ExternalID(models.SourceMarquee, providerID),
		ExternalURL:  normalize.FirstString(raw, "url"),
		ImageURL:     a.image(raw),
		Tags:         tags,
		Metadata:     metadata,
	}
	return ev, nil
}

func venueCity(venue map[string]any) string {
	if venue == nil {
		return ""
	}
	if v, err := dipper.Get(venue, "city.name"); err == nil {
		if s, ok := convert.ToString(v); ok {
			return s
		}
	}
	return ""
}

func (a *Adapter) venue(raw contracts.Record) map[string]any {
	v, err := dipper.Get(raw, "_embedded.venues")
	if err != nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	first, _ := list[0].(map[string]any)
	return first
}

// inArea keeps events whose venue is in-state and whose city or street
// address mentions the served city. Events with no venue record at all
// are retained; dropping them would lose listings the provider simply
// has not georeferenced yet.
func (a *Adapter) inArea(venue map[string]any) bool {
	if venue == nil {
		return true
	}
	if state, err := dipper.Get(venue, "state.stateCode"); err == nil {
		if s, ok := convert.ToString(state); ok && s != "" && !strings.EqualFold(s, "NY") {
			return false
		}
	}
	city := strings.ToLower(venueCity(venue))
	addr := ""
	if v, err := dipper.Get(venue, "address.line1"); err == nil {
		if s, ok := convert.ToString(v); ok {
			addr = strings.ToLower(s)
		}
	}
	if city == "" && addr == "" {
		return true
	}
	return strings.Contains(city, "new york") || strings.Contains(addr, "new york")
}

func (a *Adapter) startTime(raw contracts.Record) (start time.Time, ok bool) {
	if v, err := dipper.Get(raw, "dates.start.dateTime"); err == nil {
		if s, sok := convert.ToString(v); sok {
			if t, tok := normalize.ParseDateTime(s); tok {
				return t, true
			}
		}
	}
	localDate := ""
	if v, err := dipper.Get(raw, "dates.start.localDate"); err == nil {
		localDate, _ = convert.ToString(v)
	}
	if localDate == "" {
		return start, false
	}
	localTime := ""
	if v, err := dipper.Get(raw, "dates.start.localTime"); err == nil {
		localTime, _ = convert.ToString(v)
	}
	s := localDate
	if localTime != "" {
		s += "T" + localTime
	}
	return normalize.ParseDateTime(s)
}

func (a *Adapter) prices(raw contracts.Record) (int, *int) {
	v, err := dipper.Get(raw, "priceRanges")
	if err != nil {
		return 0, nil
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return 0, nil
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return 0, nil
	}
	min := 0
	if f, ok := convert.ToFloat64(first["min"]); ok {
		min = int(f)
	}
	if f, ok := convert.ToFloat64(first["max"]); ok {
		max := int(f)
		return min, &max
	}
	return min, nil
}

func (a *Adapter) classification(raw contracts.Record) (segment, genre, subGenre string) {
	v, err := dipper.Get(raw, "classifications")
	if err != nil {
		return
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return
	}
	name := func(key string) string {
		if m, ok := first[key].(map[string]any); ok {
			if s, ok := convert.ToString(m["name"]); ok {
				return s
			}
		}
		return ""
	}
	return name("segment"), name("genre"), name("subGenre")
}

// image picks the widest 16:9 rendition; the provider serves several
// crops per event and 16:9 is the one sized for listing cards.
func (a *Adapter) image(raw contracts.Record) string {
	v, err := dipper.Get(raw, "images")
	if err != nil {
		return ""
	}
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	best, bestWidth := "", -1
	for _, item := range list {
		img, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ratio, _ := convert.ToString(img["ratio"])
		if ratio != "16_9" {
			continue
		}
		width := 0
		if f, ok := convert.ToFloat64(img["width"]); ok {
			width = int(f)
		}
		if u, ok := convert.ToString(img["url"]); ok && u != "" && width > bestWidth {
			best, bestWidth = u, width
		}
	}
	if best == "" && len(list) > 0 {
		if img, ok := list[0].(map[string]any); ok {
			best, _ = convert.ToString(img["url"])
		}
	}
	return best
}

func (a *Adapter) venueAddress(venue map[string]any) string {
	if venue == nil {
		return ""
	}
	var parts []string
	if v, err := dipper.Get(venue, "address.line1"); err == nil {
		if s, ok := convert.ToString(v); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if v, err := dipper.Get(venue, "city.name"); err == nil {
		if s, ok := convert.ToString(v); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if v, err := dipper.Get(venue, "state.stateCode"); err == nil {
		if s, ok := convert.ToString(v); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
