package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/errors"
)

// Category is the fixed set of canonical event categories. Raw provider
// categories that map to nothing fall back to a per-adapter default.
type Category string

const (
	CategoryNetworking   Category = "networking"
	CategoryCulture      Category = "culture"
	CategoryFitness      Category = "fitness"
	CategoryFood         Category = "food"
	CategoryNightlife    Category = "nightlife"
	CategoryOutdoor      Category = "outdoor"
	CategoryProfessional Category = "professional"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNetworking, CategoryCulture, CategoryFitness, CategoryFood,
		CategoryNightlife, CategoryOutdoor, CategoryProfessional:
		return true
	}
	return false
}

// Source identifies an event provider.
type Source string

const (
	SourceCityParks Source = "cityparks"
	SourceOpenData  Source = "opendata"
	SourceMarquee   Source = "marquee"
)

// Event is the canonical event record every adapter produces. Identity is
// (Source, ExternalID); everything else is mutable across reruns.
type Event struct {
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	LocationName string         `json:"location_name"`
	Address      string         `json:"address,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	Neighborhood string         `json:"neighborhood,omitempty"`
	Category     Category       `json:"category"`
	PriceMin     int            `json:"price_min"`
	PriceMax     *int           `json:"price_max,omitempty"`
	Capacity     *int           `json:"capacity,omitempty"`
	Source       Source         `json:"source"`
	ExternalID   string         `json:"external_id"`
	ExternalURL  string         `json:"external_url,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Validate checks the required fields and repairs the droppable ones: an
// end time at or before the start and a max price below the min are both
// treated as absent rather than as errors.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("event: title is required")
	}
	if e.StartTime.IsZero() {
		return errors.New("event: start time is required")
	}
	if strings.TrimSpace(e.LocationName) == "" {
		return errors.New("event: location name is required")
	}
	if e.Source == "" {
		return errors.New("event: source is required")
	}
	if e.ExternalID == "" {
		return errors.New("event: external id is required")
	}
	if !e.Category.Valid() {
		return errors.New("event: unknown category " + string(e.Category))
	}
	if e.PriceMin < 0 {
		return errors.New("event: negative minimum price")
	}
	if e.EndTime != nil && !e.EndTime.After(e.StartTime) {
		e.EndTime = nil
	}
	if e.PriceMax != nil && *e.PriceMax < e.PriceMin {
		e.PriceMax = nil
	}
	if e.Capacity != nil && *e.Capacity <= 0 {
		e.Capacity = nil
	}
	if e.Latitude != nil && (*e.Latitude < -90 || *e.Latitude > 90) {
		e.Latitude = nil
	}
	if e.Longitude != nil && (*e.Longitude < -180 || *e.Longitude > 180) {
		e.Longitude = nil
	}
	return nil
}

// RunResult holds the statistics of one adapter run. It is constructed
// once at the end of a run and never mutated afterwards.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Source      Source    `json:"source"`
	Found       int       `json:"found"`
	New         int       `json:"new"`
	Updated     int       `json:"updated"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

func (r RunResult) OK() bool {
	return r.Error == ""
}

func (r RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r RunResult) String() string {
	status := "SUCCESS"
	if !r.OK() {
		status = "FAILED"
	}
	s := fmt.Sprintf("[%s] %s - Found: %d, New: %d, Updated: %d, Failed: %d, Skipped: %d (%.1fs)",
		r.Source, status, r.Found, r.New, r.Updated, r.Failed, r.Skipped, r.Duration().Seconds())
	if r.Error != "" {
		s += " - " + r.Error
	}
	return s
}

// Sync statuses recorded on a source tracking row.
const (
	SyncSuccess = "success"
	SyncFailed  = "failed"
)

// SourceSync is the per-source tracking row, created on first run and
// upserted by source name on every run after that.
type SourceSync struct {
	Source    Source    `json:"source"`
	LastRunAt time.Time `json:"last_run_at"`
	Status    string    `json:"status"`
	Found     int       `json:"events_found"`
	New       int       `json:"events_new"`
	Updated   int       `json:"events_updated"`
	LastError string    `json:"last_error,omitempty"`
	Enabled   bool      `json:"enabled"`
}

// SyncFromResult builds the tracking row update for a finished run.
func SyncFromResult(r RunResult) SourceSync {
	status := SyncSuccess
	if !r.OK() {
		status = SyncFailed
	}
	return SourceSync{
		Source:    r.Source,
		LastRunAt: r.CompletedAt,
		Status:    status,
		Found:     r.Found,
		New:       r.New,
		Updated:   r.Updated,
		LastError: r.Error,
		Enabled:   true,
	}
}
