package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresWatermark_Found(t *testing.T) {
	st, mock := newMockStore(t)
	pos := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT position FROM watermarks`).
		WithArgs("employees").
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow(pos))

	wm, err := st.Watermark(context.Background(), "employees")
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.True(t, wm.Equal(pos))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWatermark_MissingIsNil(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT position FROM watermarks`).
		WithArgs("claims").
		WillReturnError(pgx.ErrNoRows)

	wm, err := st.Watermark(context.Background(), "claims")
	require.NoError(t, err)
	assert.Nil(t, wm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendRunMetrics(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO run_metrics`).
		WithArgs("run-1", "complete", false, 10, 10, 8, 2, 8, 8, 0, 1,
			pgxmock.AnyArg(), pgxmock.AnyArg(), int64(1500), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.AppendRunMetrics(context.Background(), &model.RunMetrics{
		RunID:        "run-1",
		Status:       model.RunStatusComplete,
		RowsRead:     10,
		RowsCleaned:  10,
		RowsValid:    8,
		RowsFlagged:  2,
		RowsEnriched: 8,
		RowsWritten:  8,
		EINsInferred: 1,
		StartedAt:    time.Now().UTC(),
		CompletedAt:  time.Now().UTC(),
		ElapsedMS:    1500,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendValidationErrors_UsesCopy(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectCopyFrom(
		pgx.Identifier{"validation_errors"},
		[]string{"id", "source", "record_key", "rules", "reason", "severity", "record", "detected_at"},
	).WillReturnResult(1)

	err := st.AppendValidationErrors(context.Background(), []model.ValidationError{{
		Source:     "employees",
		RecordKey:  "P1|2024-01-01",
		Rules:      []string{"email_format"},
		Reason:     "invalid email",
		Severity:   model.SeverityHard,
		Record:     "{}",
		DetectedAt: time.Now().UTC(),
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendValidationErrors_EmptyIsNoop(t *testing.T) {
	st, mock := newMockStore(t)

	require.NoError(t, st.AppendValidationErrors(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceRoster(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "analysis_roster"`).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(
		pgx.Identifier{"analysis_roster"},
		[]string{"company_ein", "expected", "actual", "delta", "pct_diff", "severity"},
	).WillReturnResult(1)
	mock.ExpectCommit()

	err := st.ReplaceRoster(context.Background(), []analytics.Mismatch{{
		CompanyEIN: "11-111",
		Expected:   50,
		Actual:     53,
		Delta:      3,
		PctDiff:    6,
		Severity:   "low",
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRunMetrics(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	cols := []string{
		"run_id", "status", "full_refresh", "rows_read", "rows_cleaned", "rows_valid",
		"rows_flagged", "rows_enriched", "rows_written", "duplicate_claims", "eins_inferred",
		"started_at", "completed_at", "elapsed_ms", "error",
	}
	mock.ExpectQuery(`SELECT run_id, status`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("run-1", "failed", true, 7, 7, 5, 2, 5, 0, 1, 1, now, now, int64(42), "boom"))

	runs, err := st.ListRunMetrics(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.True(t, runs[0].FullRefresh)
	assert.Equal(t, "boom", runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
