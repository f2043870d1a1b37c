// Package store persists run history and the scraped-profile cache behind
// one interface with SQLite (default) and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
)

// DefaultProfileTTL is how long a scraped profile stays fresh when the
// config does not say otherwise.
const DefaultProfileTTL = 7 * 24 * time.Hour

// ErrNotFound is wrapped into errors for run ids that do not exist.
var ErrNotFound = eris.New("not found")

// RunFilter specifies criteria for listing stored runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines persistence for enrichment runs and cached profiles.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, origin string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, summary *model.PipelineSummary, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Profile cache
	CachedProfile(ctx context.Context, handle string) ([]byte, error)
	PutCachedProfile(ctx context.Context, handle string, payload []byte, ttl time.Duration) error
	PurgeExpiredProfiles(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ProfileCache binds a Store to one TTL so the enrichment adapters can cache
// profiles without carrying retention policy.
type ProfileCache struct {
	Store Store
	TTL   time.Duration
}

func (c ProfileCache) CachedProfile(ctx context.Context, handle string) ([]byte, error) {
	return c.Store.CachedProfile(ctx, handle)
}

func (c ProfileCache) PutCachedProfile(ctx context.Context, handle string, payload []byte) error {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return c.Store.PutCachedProfile(ctx, handle, payload, ttl)
}
