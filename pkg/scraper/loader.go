package scraper

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/oarkflow/log"

	"github.com/citypulse/ingest/pkg/contracts"
	"github.com/citypulse/ingest/pkg/models"
)

// Loader upserts canonical events keyed by (source, external_id). Each
// event is one read-then-write; a failure on one event never aborts the
// rest. Loading the same batch twice leaves the store in the same state,
// the second pass just reports updates instead of inserts.
type Loader struct {
	store  contracts.Store
	cache  *ristretto.Cache
	dryRun bool
	logger *log.Logger
}

func NewLoader(store contracts.Store, dryRun bool, logger *log.Logger) *Loader {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	// Row-id lookups are immutable once an identity key exists, so a
	// lossy cache in front of FindByKey is always safe.
	cache, _ := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     1 << 22,
		BufferItems: 64,
	})
	return &Loader{store: store, cache: cache, dryRun: dryRun, logger: logger}
}

func (l *Loader) Load(ctx context.Context, events []*models.Event) (newCount, updatedCount, failedCount int) {
	for _, ev := range events {
		id, found, err := l.lookup(ctx, ev)
		if err != nil {
			failedCount++
			l.logger.Error().Err(err).Str("source", string(ev.Source)).
				Str("external_id", ev.ExternalID).Msg("load: lookup failed")
			continue
		}
		if l.dryRun {
			action := "INSERT"
			if found {
				action = "UPDATE"
				updatedCount++
			} else {
				newCount++
			}
			l.logger.Info().Str("action", action).Str("title", ev.Title).
				Str("external_id", ev.ExternalID).Msg("dry run: would write")
			continue
		}
		if found {
			if err := l.store.Update(ctx, id, ev); err != nil {
				failedCount++
				l.logger.Error().Err(err).Str("external_id", ev.ExternalID).Msg("load: update failed")
				continue
			}
			updatedCount++
		} else {
			if err := l.store.Insert(ctx, ev); err != nil {
				failedCount++
				l.logger.Error().Err(err).Str("external_id", ev.ExternalID).Msg("load: insert failed")
				continue
			}
			newCount++
		}
	}
	return newCount, updatedCount, failedCount
}

func (l *Loader) lookup(ctx context.Context, ev *models.Event) (string, bool, error) {
	key := string(ev.Source) + "|" + ev.ExternalID
	if v, ok := l.cache.Get(key); ok {
		if id, ok := v.(string); ok {
			return id, true, nil
		}
	}
	id, found, err := l.store.FindByKey(ctx, ev.Source, ev.ExternalID)
	if err != nil {
		return "", false, err
	}
	if found {
		l.cache.Set(key, id, 1)
	}
	return id, found, nil
}
