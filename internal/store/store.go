// Package store persists scrape runs and the businesses they produced.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bbb-scraper/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for scrape runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, searchInput string, pages int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.ScrapeResult) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Businesses
	UpsertBusinesses(ctx context.Context, runID string, businesses []model.Business) error
	ListBusinesses(ctx context.Context, runID string) ([]model.Business, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// businessKey is the row key of a business within a run. Records without a
// dedupe key are keyed by position so none overwrite each other.
func businessKey(b *model.Business, position int) string {
	if key, ok := b.DedupeKey(); ok {
		return key
	}
	return fmt.Sprintf("row:%d", position)
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

type scannable interface {
	Scan(dest ...any) error
}

// scanBusiness reads the business columns in businessColumns order.
func scanBusiness(row scannable) (model.Business, error) {
	var b model.Business
	err := row.Scan(&b.ID, &b.Name, &b.Phone, &b.PrincipalContact, &b.URL,
		&b.StreetAddress, &b.City, &b.State, &b.PostalCode, &b.Accredited)
	return b, err
}

const businessColumns = `business_id, name, phone, principal_contact, url, street_address, city, state, postal_code, accredited`
