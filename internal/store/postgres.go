package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/db"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/valuation"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	locks   *tickerLocks
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"put_document":         `INSERT INTO documents (id, ticker, doc_type, record, raw_text, imported_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO UPDATE SET ticker = EXCLUDED.ticker, doc_type = EXCLUDED.doc_type, record = EXCLUDED.record, raw_text = EXCLUDED.raw_text, imported_at = EXCLUDED.imported_at`,
	"get_document":         `SELECT record, raw_text FROM documents WHERE id = $1`,
	"put_quarter":          `INSERT INTO quarters (ticker, period, data, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (ticker, period) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	"list_quarters":        `SELECT data FROM quarters WHERE ticker = $1 ORDER BY period ASC`,
	"put_valuation_inputs": `INSERT INTO valuation_inputs (ticker, data, updated_at) VALUES ($1, $2, $3) ON CONFLICT (ticker) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	"get_valuation_inputs": `SELECT data FROM valuation_inputs WHERE ticker = $1`,
	"save_report":          `INSERT INTO reports (ticker, run_id, qa_status, data, generated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (ticker) DO UPDATE SET run_id = EXCLUDED.run_id, qa_status = EXCLUDED.qa_status, data = EXCLUDED.data, generated_at = EXCLUDED.generated_at`,
	"get_report":           `SELECT data FROM reports WHERE ticker = $1`,
	"add_trigger":          `INSERT INTO triggers (id, ticker, data, created_at) VALUES ($1, $2, $3, $4)`,
	"list_triggers":        `SELECT data FROM triggers WHERE ticker = $1 ORDER BY created_at ASC, id ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, locks: newTickerLocks(), closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	ticker      TEXT NOT NULL,
	doc_type    TEXT NOT NULL,
	record      JSONB NOT NULL,
	raw_text    TEXT NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quarters (
	ticker     TEXT NOT NULL,
	period     TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ticker, period)
);

CREATE TABLE IF NOT EXISTS valuation_inputs (
	ticker     TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	ticker       TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	qa_status    TEXT NOT NULL,
	data         JSONB NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS triggers (
	id         TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_ticker ON documents(ticker);
CREATE INDEX IF NOT EXISTS idx_quarters_ticker ON quarters(ticker);
CREATE INDEX IF NOT EXISTS idx_triggers_ticker ON triggers(ticker);
CREATE INDEX IF NOT EXISTS idx_reports_qa_status ON reports(qa_status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) PutDocument(ctx context.Context, doc model.Document, text string) error {
	doc.Ticker = canonicalTicker(doc.Ticker)
	record, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal document")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["put_document"],
		doc.ID, doc.Ticker, string(doc.DocType), record, text, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put document %s", doc.ID)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, string, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_document"], id)
	var record []byte
	var text string
	err := row.Scan(&record, &text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", &NotFoundError{Entity: "document", Key: id}
	}
	if err != nil {
		return nil, "", eris.Wrapf(err, "postgres: get document %s", id)
	}
	var doc model.Document
	if err := json.Unmarshal(record, &doc); err != nil {
		return nil, "", eris.Wrapf(err, "postgres: unmarshal document %s", id)
	}
	return &doc, text, nil
}

func (s *PostgresStore) PutQuarter(ctx context.Context, q *model.CompanyQuarter) error {
	ticker := canonicalTicker(q.Ticker)
	defer s.locks.lock(ticker)()

	data, err := json.Marshal(q)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal quarter")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["put_quarter"],
		ticker, q.Period, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put quarter %s %s", ticker, q.Period)
}

// ImportQuarters bulk-loads normalized quarters through a temp-table upsert,
// which is substantially faster than row-at-a-time PutQuarter for backfills.
func (s *PostgresStore) ImportQuarters(ctx context.Context, quarters []*model.CompanyQuarter) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(quarters))
	for _, q := range quarters {
		data, err := json.Marshal(q)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal quarter %s %s", q.Ticker, q.Period)
		}
		rows = append(rows, []any{canonicalTicker(q.Ticker), q.Period, data, now})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "quarters",
		Columns:      []string{"ticker", "period", "data", "updated_at"},
		ConflictKeys: []string{"ticker", "period"},
	}, rows)
}

func (s *PostgresStore) ListQuarters(ctx context.Context, ticker string) ([]*model.CompanyQuarter, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_quarters"], canonicalTicker(ticker))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list quarters %s", ticker)
	}
	defer rows.Close()

	var quarters []*model.CompanyQuarter
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quarter")
		}
		var q model.CompanyQuarter
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal quarter")
		}
		quarters = append(quarters, &q)
	}
	return quarters, eris.Wrap(rows.Err(), "postgres: list quarters iterate")
}

func (s *PostgresStore) PutValuationInputs(ctx context.Context, ticker string, in *valuation.Inputs) error {
	ticker = canonicalTicker(ticker)
	defer s.locks.lock(ticker)()

	data, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal valuation inputs")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["put_valuation_inputs"],
		ticker, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put valuation inputs %s", ticker)
}

func (s *PostgresStore) GetValuationInputs(ctx context.Context, ticker string) (*valuation.Inputs, error) {
	ticker = canonicalTicker(ticker)
	row := s.pool.QueryRow(ctx, preparedStatements["get_valuation_inputs"], ticker)
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "valuation inputs", Key: ticker}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get valuation inputs %s", ticker)
	}
	var in valuation.Inputs
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal valuation inputs %s", ticker)
	}
	return &in, nil
}

// SaveReport replaces the ticker's dossier in one statement, so readers see
// either the old report or the new one, never a mix.
func (s *PostgresStore) SaveReport(ctx context.Context, report *model.Report) error {
	ticker := canonicalTicker(report.Ticker)
	defer s.locks.lock(ticker)()

	data, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["save_report"],
		ticker, report.RunID, string(report.Verifier.Status), data, report.GeneratedAt,
	)
	return eris.Wrapf(err, "postgres: save report %s", ticker)
}

func (s *PostgresStore) GetReport(ctx context.Context, ticker string) (*model.Report, error) {
	ticker = canonicalTicker(ticker)
	row := s.pool.QueryRow(ctx, preparedStatements["get_report"], ticker)
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "report", Key: ticker}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", ticker)
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal report %s", ticker)
	}
	return &report, nil
}

func (s *PostgresStore) AddTrigger(ctx context.Context, trig model.Trigger) error {
	ticker := canonicalTicker(trig.Ticker)
	defer s.locks.lock(ticker)()

	trig.Ticker = ticker
	data, err := json.Marshal(trig)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trigger")
	}
	_, err = s.pool.Exec(ctx, preparedStatements["add_trigger"],
		trig.ID, ticker, data, trig.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: add trigger %s", trig.ID)
}

func (s *PostgresStore) ListTriggers(ctx context.Context, ticker string) ([]model.Trigger, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_triggers"], canonicalTicker(ticker))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list triggers %s", ticker)
	}
	defer rows.Close()

	var defs []model.Trigger
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trigger")
		}
		var trig model.Trigger
		if err := json.Unmarshal(data, &trig); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trigger")
		}
		defs = append(defs, trig)
	}
	return defs, eris.Wrap(rows.Err(), "postgres: list triggers iterate")
}
