package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, locks: newTickerLocks()}
	return s, mock
}

func TestPostgresStore_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM reports WHERE ticker = \$1`).
		WithArgs("ZZZZ").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetReport(context.Background(), "zzzz")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReport_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reports .* ON CONFLICT \(ticker\)`).
		WithArgs("ACME", "run-1", "PASS", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	report := sampleReport("acme", "run-1")
	err := s.SaveReport(context.Background(), report)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocument_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	record := []byte(`{"id":"DOC-10Q","ticker":"ACME","doc_type":"10-Q","title":"Form 10-Q"}`)
	mock.ExpectQuery(`SELECT record, raw_text FROM documents WHERE id = \$1`).
		WithArgs("DOC-10Q").
		WillReturnRows(pgxmock.NewRows([]string{"record", "raw_text"}).AddRow(record, "filing body"))

	doc, text, err := s.GetDocument(context.Background(), "DOC-10Q")
	require.NoError(t, err)
	assert.Equal(t, "ACME", doc.Ticker)
	assert.Equal(t, model.DocType10Q, doc.DocType)
	assert.Equal(t, "filing body", text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutQuarter_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO quarters .* ON CONFLICT \(ticker, period\)`).
		WithArgs("ACME", "2024-Q2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutQuarter(context.Background(), &model.CompanyQuarter{
		Ticker:     "acme",
		Period:     "2024-Q2",
		IncomeStmt: map[string]float64{"Revenue": 7.3e6},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTriggers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"t-1","ticker":"ACME","metric":"Gross Margin","threshold":0.4,"operator":"gte","deadline":"2024-09-30"}`)).
		AddRow([]byte(`{"id":"t-2","ticker":"ACME","metric":"Net Debt / EBITDA","threshold":3,"operator":"lte","deadline":"2024-12-31"}`))
	mock.ExpectQuery(`SELECT data FROM triggers WHERE ticker = \$1`).
		WithArgs("ACME").
		WillReturnRows(rows)

	defs, err := s.ListTriggers(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "t-1", defs[0].ID)
	assert.Equal(t, "Gross Margin", defs[0].Metric)
	assert.Equal(t, model.OpLTE, defs[1].Operator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportQuarters_BulkFlow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"ticker", "period", "data", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_quarters"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_quarters"}, cols).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "quarters" .* ON CONFLICT \("ticker", "period"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	quarters := []*model.CompanyQuarter{
		{Ticker: "acme", Period: "2024-Q1", IncomeStmt: map[string]float64{"Revenue": 6.9e6}},
		{Ticker: "acme", Period: "2024-Q2", IncomeStmt: map[string]float64{"Revenue": 7.3e6}},
	}
	n, err := s.ImportQuarters(context.Background(), quarters)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddTrigger(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO triggers`).
		WithArgs("t-9", "ACME", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AddTrigger(context.Background(), model.Trigger{
		ID:        "t-9",
		Ticker:    "acme",
		Metric:    "Runway",
		Threshold: 12,
		Operator:  model.OpGTE,
		Deadline:  "2025-03-31",
		CreatedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
