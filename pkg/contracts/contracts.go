package contracts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/citypulse/ingest/pkg/models"
)

// Record is a raw, provider-shaped item. It only lives inside one run.
type Record = map[string]any

// Window is the look-ahead window a fetch is limited to.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFrom returns a window of the given number of days starting at now.
func WindowFrom(now time.Time, days int) Window {
	return Window{Start: now, End: now.Add(time.Duration(days) * 24 * time.Hour)}
}

var (
	// ErrSkip marks a transform result that is intentionally dropped
	// (missing required fields, unparseable start time). It is not a
	// defect and is counted separately from transform failures.
	ErrSkip = errors.New("skip")

	// ErrConfig marks a missing or invalid configuration detected before
	// any request is made. The run aborts and is not retried until the
	// configuration changes.
	ErrConfig = errors.New("configuration error")
)

// Skipf wraps ErrSkip with a reason.
func Skipf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrSkip}, args...)...)
}

// IsConfigError reports whether a run error message originated from
// ErrConfig. Run results carry errors as text, so the check is textual.
func IsConfigError(msg string) bool {
	return strings.Contains(msg, ErrConfig.Error())
}

// Adapter is one event provider. Fetch retrieves raw items within the
// window using the client the orchestrator scopes to the run; a fetch
// error is run-fatal. Transform is pure: it maps one raw item to a
// canonical event or returns an ErrSkip-wrapped error, and must not
// perform I/O.
type Adapter interface {
	Source() models.Source
	Fetch(ctx context.Context, client *http.Client, window Window) ([]Record, error)
	Transform(raw Record) (*models.Event, error)
}

// Store is the persistence collaborator. Identity is (source,
// external_id); implementations must be safe for concurrent use keyed by
// record identity.
type Store interface {
	FindByKey(ctx context.Context, source models.Source, externalID string) (id string, found bool, err error)
	Insert(ctx context.Context, ev *models.Event) error
	Update(ctx context.Context, id string, ev *models.Event) error
	UpsertTracking(ctx context.Context, sync models.SourceSync) error
	ListTracking(ctx context.Context) ([]models.SourceSync, error)
}

// Queue is the task-queue collaborator with at-least-once delivery.
// Redelivery is safe because loads are idempotent.
type Queue interface {
	Enqueue(ctx context.Context, job string) error
	Close() error
}
