package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/citypulse/ingest/pkg/models"
)

type memoryRow struct {
	ID        string
	Event     models.Event
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Memory is an in-process Store used by tests and by dry runs without a
// database. Semantics mirror the postgres store, including the
// (source, external_id) identity key.
type Memory struct {
	mu       sync.Mutex
	rows     map[string]*memoryRow
	tracking map[models.Source]models.SourceSync
	nextID   int

	// FailOn makes writes for a given external id fail, for exercising
	// per-event load error paths.
	FailOn map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		rows:     make(map[string]*memoryRow),
		tracking: make(map[models.Source]models.SourceSync),
		FailOn:   make(map[string]bool),
	}
}

func key(source models.Source, externalID string) string {
	return string(source) + "|" + externalID
}

func (m *Memory) FindByKey(_ context.Context, source models.Source, externalID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[key(source, externalID)]; ok {
		return row.ID, true, nil
	}
	return "", false, nil
}

func (m *Memory) Insert(_ context.Context, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOn[ev.ExternalID] {
		return fmt.Errorf("memory store: induced failure for %s", ev.ExternalID)
	}
	k := key(ev.Source, ev.ExternalID)
	if _, exists := m.rows[k]; exists {
		return fmt.Errorf("memory store: duplicate key %s", k)
	}
	m.nextID++
	now := time.Now().UTC()
	m.rows[k] = &memoryRow{
		ID:        fmt.Sprintf("mem-%d", m.nextID),
		Event:     *ev,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (m *Memory) Update(_ context.Context, id string, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOn[ev.ExternalID] {
		return fmt.Errorf("memory store: induced failure for %s", ev.ExternalID)
	}
	for _, row := range m.rows {
		if row.ID == id {
			created := row.CreatedAt
			row.Event = *ev
			row.CreatedAt = created
			row.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("memory store: no row with id %s", id)
}

func (m *Memory) UpsertTracking(_ context.Context, sync models.SourceSync) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking[sync.Source] = sync
	return nil
}

func (m *Memory) ListTracking(_ context.Context) ([]models.SourceSync, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SourceSync, 0, len(m.tracking))
	for _, s := range m.tracking {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// Count reports stored event rows.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Get returns the stored event for an identity key, if present.
func (m *Memory) Get(source models.Source, externalID string) (models.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[key(source, externalID)]; ok {
		return row.Event, true
	}
	return models.Event{}, false
}

// Tracking returns the tracking row for a source, if present.
func (m *Memory) Tracking(source models.Source) (models.SourceSync, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.tracking[source]
	return s, ok
}
