package history

import (
	"context"
	"time"
)

// Adapter binds a Store to one project key for the core HistoryStore port.
type Adapter struct {
	store      *Store
	projectKey string
}

func NewAdapter(store *Store, projectKey string) *Adapter {
	return &Adapter{store: store, projectKey: normalizeProjectKey(projectKey)}
}

func (a *Adapter) ProjectKey() string {
	return a.projectKey
}

func (a *Adapter) SaveRun(ctx context.Context, run Run) error {
	run.ProjectKey = a.projectKey
	return a.store.SaveRun(ctx, a.projectKey, run)
}

func (a *Adapter) LoadRuns(ctx context.Context, since time.Time, limit int) ([]Run, error) {
	return a.store.LoadRuns(ctx, a.projectKey, since, limit)
}

func (a *Adapter) Close() error {
	return a.store.Close()
}
