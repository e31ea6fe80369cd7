package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/valuation"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	locks *tickerLocks
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, locks: newTickerLocks()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	ticker      TEXT NOT NULL,
	doc_type    TEXT NOT NULL,
	record      TEXT NOT NULL,
	raw_text    TEXT NOT NULL,
	imported_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quarters (
	ticker     TEXT NOT NULL,
	period     TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (ticker, period)
);

CREATE TABLE IF NOT EXISTS valuation_inputs (
	ticker     TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	ticker       TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	qa_status    TEXT NOT NULL,
	data         TEXT NOT NULL,
	generated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS triggers (
	id         TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_ticker ON documents(ticker);
CREATE INDEX IF NOT EXISTS idx_quarters_ticker ON quarters(ticker);
CREATE INDEX IF NOT EXISTS idx_triggers_ticker ON triggers(ticker);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutDocument(ctx context.Context, doc model.Document, text string) error {
	doc.Ticker = canonicalTicker(doc.Ticker)
	record, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal document")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, ticker, doc_type, record, raw_text, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   ticker = excluded.ticker,
		   doc_type = excluded.doc_type,
		   record = excluded.record,
		   raw_text = excluded.raw_text,
		   imported_at = excluded.imported_at`,
		doc.ID, doc.Ticker, string(doc.DocType), string(record), text, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put document %s", doc.ID)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record, raw_text FROM documents WHERE id = ?`, id,
	)
	var record, text string
	err := row.Scan(&record, &text)
	if err == sql.ErrNoRows {
		return nil, "", &NotFoundError{Entity: "document", Key: id}
	}
	if err != nil {
		return nil, "", eris.Wrapf(err, "sqlite: get document %s", id)
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(record), &doc); err != nil {
		return nil, "", eris.Wrapf(err, "sqlite: unmarshal document %s", id)
	}
	return &doc, text, nil
}

func (s *SQLiteStore) PutQuarter(ctx context.Context, q *model.CompanyQuarter) error {
	ticker := canonicalTicker(q.Ticker)
	defer s.locks.lock(ticker)()

	data, err := json.Marshal(q)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal quarter")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quarters (ticker, period, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(ticker, period) DO UPDATE SET
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		ticker, q.Period, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put quarter %s %s", ticker, q.Period)
}

func (s *SQLiteStore) ListQuarters(ctx context.Context, ticker string) ([]*model.CompanyQuarter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM quarters WHERE ticker = ? ORDER BY period ASC`,
		canonicalTicker(ticker),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list quarters %s", ticker)
	}
	defer rows.Close()

	var quarters []*model.CompanyQuarter
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quarter")
		}
		var q model.CompanyQuarter
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal quarter")
		}
		quarters = append(quarters, &q)
	}
	return quarters, eris.Wrap(rows.Err(), "sqlite: list quarters iterate")
}

func (s *SQLiteStore) PutValuationInputs(ctx context.Context, ticker string, in *valuation.Inputs) error {
	ticker = canonicalTicker(ticker)
	defer s.locks.lock(ticker)()

	data, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal valuation inputs")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuation_inputs (ticker, data, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		ticker, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put valuation inputs %s", ticker)
}

func (s *SQLiteStore) GetValuationInputs(ctx context.Context, ticker string) (*valuation.Inputs, error) {
	ticker = canonicalTicker(ticker)
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM valuation_inputs WHERE ticker = ?`, ticker,
	)
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "valuation inputs", Key: ticker}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get valuation inputs %s", ticker)
	}
	var in valuation.Inputs
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal valuation inputs %s", ticker)
	}
	return &in, nil
}

// SaveReport replaces the ticker's dossier in one statement, so readers see
// either the old report or the new one, never a mix.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *model.Report) error {
	ticker := canonicalTicker(report.Ticker)
	defer s.locks.lock(ticker)()

	data, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (ticker, run_id, qa_status, data, generated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET
		   run_id = excluded.run_id,
		   qa_status = excluded.qa_status,
		   data = excluded.data,
		   generated_at = excluded.generated_at`,
		ticker, report.RunID, string(report.Verifier.Status), string(data), report.GeneratedAt,
	)
	return eris.Wrapf(err, "sqlite: save report %s", ticker)
}

func (s *SQLiteStore) GetReport(ctx context.Context, ticker string) (*model.Report, error) {
	ticker = canonicalTicker(ticker)
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM reports WHERE ticker = ?`, ticker,
	)
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "report", Key: ticker}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", ticker)
	}
	var report model.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal report %s", ticker)
	}
	return &report, nil
}

func (s *SQLiteStore) AddTrigger(ctx context.Context, trig model.Trigger) error {
	ticker := canonicalTicker(trig.Ticker)
	defer s.locks.lock(ticker)()

	trig.Ticker = ticker
	data, err := json.Marshal(trig)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trigger")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO triggers (id, ticker, data, created_at) VALUES (?, ?, ?, ?)`,
		trig.ID, ticker, string(data), trig.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: add trigger %s", trig.ID)
}

func (s *SQLiteStore) ListTriggers(ctx context.Context, ticker string) ([]model.Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM triggers WHERE ticker = ? ORDER BY created_at ASC, id ASC`,
		canonicalTicker(ticker),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list triggers %s", ticker)
	}
	defer rows.Close()

	var defs []model.Trigger
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trigger")
		}
		var trig model.Trigger
		if err := json.Unmarshal([]byte(data), &trig); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trigger")
		}
		defs = append(defs, trig)
	}
	return defs, eris.Wrap(rows.Err(), "sqlite: list triggers iterate")
}
