package store

import (
	"context"
	"time"

	"github.com/wildfunctions/acme/pkg/fitness"
)

// Run describes one search run. Scope identifies the experiment (pool,
// objective, forcing and periods); only entries of the same scope can be
// reused by a later run.
type Run struct {
	ID          string
	Scope       string
	Started     time.Time
	Config      []byte // JSON encoded engine config
	BestGenes   string
	BestFitness fitness.Likelihood
	Evaluations int
}

// Store persists runs and the structures they evaluated.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	SaveEntries(ctx context.Context, scope, runID string, entries []fitness.Entry) error
	LoadEntries(ctx context.Context, scope string) ([]fitness.Entry, error)
	Close() error
}
