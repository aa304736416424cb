// Package store persists reports, evidence, and run bookkeeping. Reports
// are keyed by the query's normalized identifier; a cached report within
// the freshness window short-circuits the whole pipeline.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vetta-research/dossier-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the dossier pipeline.
type Store interface {
	// Report cache
	GetCachedReport(ctx context.Context, identifier string, maxAge time.Duration) (*model.Report, error)
	SaveReport(ctx context.Context, identifier string, evidence []model.EvidenceSource, report *model.Report) error

	// Runs
	CreateRun(ctx context.Context, query model.Query) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	RecordStage(ctx context.Context, runID string, stage model.StageResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the Postgres store uses. pgxmock's
// pool satisfies it, which keeps the store unit-testable without a
// database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}
