package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "quarters",
		Columns:      []string{"ticker", "period", "data"},
		ConflictKeys: []string{"ticker", "period"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "quarters",
		ConflictKeys: []string{"ticker"},
	}, [][]any{{"AAPL", "2024-Q2", "{}"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "quarters",
		Columns: []string{"ticker", "period", "data"},
	}, [][]any{{"AAPL", "2024-Q2", "{}"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_RunsTempTableFlow(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_quarters"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_quarters"}, []string{"ticker", "period", "data"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "quarters" .* ON CONFLICT \("ticker", "period"\) DO UPDATE SET "data" = EXCLUDED\."data"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rows := [][]any{
		{"AAPL", "2024-Q1", `{"Revenue":1}`},
		{"AAPL", "2024-Q2", `{"Revenue":2}`},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "quarters",
		Columns:      []string{"ticker", "period", "data"},
		ConflictKeys: []string{"ticker", "period"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"reports", `"reports"`},
		{"dossier.reports", `"dossier"."reports"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"ticker", "period", "data"})
	assert.Equal(t, `"ticker", "period", "data"`, result)
}
