package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oarkflow/json"
	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"

	_ "github.com/lib/pq"

	"github.com/citypulse/ingest/pkg/config"
	"github.com/citypulse/ingest/pkg/models"
)

// Postgres persists canonical events and per-source tracking rows.
// Events are keyed by the (source, external_id) unique constraint; the
// loader drives the read-then-write upsert, so this store only exposes
// the primitive lookup/insert/update operations.
type Postgres struct {
	db *squealx.DB
}

func NewPostgres(cfg config.Database) (*Postgres, error) {
	db, _, err := connection.FromConfig(cfg.ToSquealxConfig())
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

// Migrate creates the two tables the pipeline writes. Schema ownership
// for the rest of the product lives elsewhere.
func (s *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			location_name TEXT NOT NULL,
			address TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			neighborhood TEXT,
			category TEXT NOT NULL,
			price_min INTEGER NOT NULL DEFAULT 0,
			price_max INTEGER,
			capacity INTEGER,
			external_url TEXT,
			image_url TEXT,
			tags JSONB NOT NULL DEFAULT '[]',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (source, external_id)
		)`,
		`CREATE TABLE IF NOT EXISTS source_syncs (
			source TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			events_found INTEGER NOT NULL DEFAULT 0,
			events_new INTEGER NOT NULL DEFAULT 0,
			events_updated INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) FindByKey(ctx context.Context, source models.Source, externalID string) (string, bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM events WHERE source = $1 AND external_id = $2`, string(source), externalID)
	if err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

func (s *Postgres) Insert(ctx context.Context, ev *models.Event) error {
	rec, err := eventRecord(ev)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec["id"] = uuid.NewString()
	rec["created_at"] = now
	rec["updated_at"] = now
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO events
		(id, source, external_id, title, description, start_time, end_time,
		 location_name, address, latitude, longitude, neighborhood, category,
		 price_min, price_max, capacity, external_url, image_url, tags, metadata,
		 created_at, updated_at)
		VALUES
		(:id, :source, :external_id, :title, :description, :start_time, :end_time,
		 :location_name, :address, :latitude, :longitude, :neighborhood, :category,
		 :price_min, :price_max, :capacity, :external_url, :image_url, :tags, :metadata,
		 :created_at, :updated_at)`, rec)
	return err
}

// Update rewrites every mutable field; identity key and created_at stay.
func (s *Postgres) Update(ctx context.Context, id string, ev *models.Event) error {
	rec, err := eventRecord(ev)
	if err != nil {
		return err
	}
	rec["id"] = id
	rec["updated_at"] = time.Now().UTC()
	_, err = s.db.NamedExecContext(ctx, `UPDATE events SET
		title = :title, description = :description, start_time = :start_time,
		end_time = :end_time, location_name = :location_name, address = :address,
		latitude = :latitude, longitude = :longitude, neighborhood = :neighborhood,
		category = :category, price_min = :price_min, price_max = :price_max,
		capacity = :capacity, external_url = :external_url, image_url = :image_url,
		tags = :tags, metadata = :metadata, updated_at = :updated_at
		WHERE id = :id`, rec)
	return err
}

func (s *Postgres) UpsertTracking(ctx context.Context, sync models.SourceSync) error {
	rec := map[string]any{
		"source":         string(sync.Source),
		"last_run_at":    sync.LastRunAt,
		"status":         sync.Status,
		"events_found":   sync.Found,
		"events_new":     sync.New,
		"events_updated": sync.Updated,
		"last_error":     sync.LastError,
		"enabled":        sync.Enabled,
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO source_syncs
		(source, last_run_at, status, events_found, events_new, events_updated, last_error, enabled)
		VALUES (:source, :last_run_at, :status, :events_found, :events_new, :events_updated, :last_error, :enabled)
		ON CONFLICT (source) DO UPDATE SET
		last_run_at = EXCLUDED.last_run_at, status = EXCLUDED.status,
		events_found = EXCLUDED.events_found, events_new = EXCLUDED.events_new,
		events_updated = EXCLUDED.events_updated, last_error = EXCLUDED.last_error,
		enabled = EXCLUDED.enabled`, rec)
	return err
}

type syncRow struct {
	Source    string    `db:"source"`
	LastRunAt time.Time `db:"last_run_at"`
	Status    string    `db:"status"`
	Found     int       `db:"events_found"`
	New       int       `db:"events_new"`
	Updated   int       `db:"events_updated"`
	LastError *string   `db:"last_error"`
	Enabled   bool      `db:"enabled"`
}

func (s *Postgres) ListTracking(ctx context.Context) ([]models.SourceSync, error) {
	var rows []syncRow
	err := s.db.SelectContext(ctx, &rows, `SELECT source, last_run_at, status,
		events_found, events_new, events_updated, last_error, enabled
		FROM source_syncs ORDER BY source`)
	if err != nil {
		return nil, err
	}
	out := make([]models.SourceSync, 0, len(rows))
	for _, r := range rows {
		sync := models.SourceSync{
			Source:    models.Source(r.Source),
			LastRunAt: r.LastRunAt,
			Status:    r.Status,
			Found:     r.Found,
			New:       r.New,
			Updated:   r.Updated,
			Enabled:   r.Enabled,
		}
		if r.LastError != nil {
			sync.LastError = *r.LastError
		}
		out = append(out, sync)
	}
	return out, nil
}

func eventRecord(ev *models.Event) (map[string]any, error) {
	tags, err := json.Marshal(ev.Tags)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"source":        string(ev.Source),
		"external_id":   ev.ExternalID,
		"title":         ev.Title,
		"description":   ev.Description,
		"start_time":    ev.StartTime,
		"end_time":      ev.EndTime,
		"location_name": ev.LocationName,
		"address":       ev.Address,
		"latitude":      ev.Latitude,
		"longitude":     ev.Longitude,
		"neighborhood":  ev.Neighborhood,
		"category":      string(ev.Category),
		"price_min":     ev.PriceMin,
		"price_max":     ev.PriceMax,
		"capacity":      ev.Capacity,
		"external_url":  ev.ExternalURL,
		"image_url":     ev.ImageURL,
		"tags":          string(tags),
		"metadata":      string(meta),
	}, nil
}
