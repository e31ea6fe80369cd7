// Package store persists documents, normalized quarters, valuation inputs,
// dossier reports, and trigger definitions behind one interface with a
// SQLite default and an optional Postgres backend. Writes are serialized
// per ticker; a report row is only ever replaced whole.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/valuation"
)

// Store is the persistence interface for the dossier pipeline.
type Store interface {
	// Documents
	PutDocument(ctx context.Context, doc model.Document, text string) error
	GetDocument(ctx context.Context, id string) (*model.Document, string, error)

	// Quarters
	PutQuarter(ctx context.Context, q *model.CompanyQuarter) error
	ListQuarters(ctx context.Context, ticker string) ([]*model.CompanyQuarter, error)

	// Valuation inputs
	PutValuationInputs(ctx context.Context, ticker string, in *valuation.Inputs) error
	GetValuationInputs(ctx context.Context, ticker string) (*valuation.Inputs, error)

	// Reports
	SaveReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, ticker string) (*model.Report, error)

	// Triggers
	AddTrigger(ctx context.Context, trig model.Trigger) error
	ListTriggers(ctx context.Context, ticker string) ([]model.Trigger, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// QuarterImporter is the bulk-load upgrade the Postgres store offers; the
// import command uses it when the backend provides one and falls back to
// row-at-a-time PutQuarter otherwise.
type QuarterImporter interface {
	ImportQuarters(ctx context.Context, quarters []*model.CompanyQuarter) (int64, error)
}

// NotFoundError reports a missing row. Callers that can degrade (the HTTP
// surface turns it into a 404) branch on it with IsNotFound.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s not found: %s", e.Entity, e.Key)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Open builds the configured backend. The zero config opens SQLite at the
// configured path.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "dossier.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "store: create directory %s", dir)
			}
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// canonicalTicker is the storage key form: trimmed, uppercased.
func canonicalTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// tickerLocks serializes writers per ticker so concurrent analyses of the
// same company cannot interleave row updates.
type tickerLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newTickerLocks() *tickerLocks {
	return &tickerLocks{m: make(map[string]*sync.Mutex)}
}

// lock acquires the ticker's mutex and returns its release func.
func (l *tickerLocks) lock(ticker string) func() {
	l.mu.Lock()
	m, ok := l.m[ticker]
	if !ok {
		m = &sync.Mutex{}
		l.m[ticker] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
