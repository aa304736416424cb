package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetta-research/dossier-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_ReportRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	report := &model.Report{
		Query:       model.Query{Raw: "Carlos Andrade", NormalizedIdentifier: "carlos andrade", Type: model.QueryTypeName},
		Profile:     "Empresário do setor de transportes.",
		Conclusions: "Risco moderado.",
		Risk:        model.RiskScore{Value: 55, Level: model.RiskModerate},
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveReport(ctx, "carlos andrade", nil, report))

	got, err := s.GetCachedReport(ctx, "carlos andrade", 7*24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, report.Profile, got.Profile)
	assert.Equal(t, 55, got.Risk.Value)
}

func TestSQLiteStore_GetCachedReport_Expired(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	report := &model.Report{
		GeneratedAt: time.Now().UTC().Add(-8 * 24 * time.Hour),
	}
	require.NoError(t, s.SaveReport(ctx, "12345678901", nil, report))

	got, err := s.GetCachedReport(ctx, "12345678901", 7*24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SaveReport_Overwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.Report{Profile: "primeira versão", GeneratedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, s.SaveReport(ctx, "key", nil, first))

	second := &model.Report{Profile: "segunda versão", GeneratedAt: time.Now().UTC()}
	require.NoError(t, s.SaveReport(ctx, "key", nil, second))

	got, err := s.GetCachedReport(ctx, "key", 7*24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "segunda versão", got.Profile)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Query{Raw: "12345678901", NormalizedIdentifier: "12345678901", Type: model.QueryTypeDocument})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusSynthesis))
	require.NoError(t, s.RecordStage(ctx, run.ID, model.StageResult{
		Name:     "classify_filter",
		Status:   model.StageStatusComplete,
		Duration: 12,
	}))
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))

	runs, err := s.ListRuns(ctx, RunFilter{Identifier: "12345678901"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestSQLiteStore_FailRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Query{Raw: "x", NormalizedIdentifier: "x", Type: model.QueryTypeName})
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, run.ID, "text generation failed"))

	runs, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "text generation failed", runs[0].Error)
}

func TestSQLiteStore_UpdateRunStatus_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
