package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/normalize"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/valuation"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load collaborator-materialized inputs into the store",
	Long:  "Commands for importing point-in-time documents, extracted raw quarters, and valuation worksheets produced by the retrieval and extraction collaborators.",
}

// documentBundle is the import file shape for one point-in-time document:
// metadata plus the raw text the provenance checks quote against.
type documentBundle struct {
	Document model.Document `json:"document"`
	Text     string         `json:"text"`
}

// -- import docs --

var importDocsCmd = &cobra.Command{
	Use:   "docs <files...>",
	Short: "Import point-in-time documents with raw text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		imported := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read document file %s", path)
			}

			var bundle documentBundle
			if err := json.Unmarshal(data, &bundle); err != nil {
				return eris.Wrapf(err, "parse document file %s", path)
			}
			if bundle.Document.ID == "" || bundle.Document.Ticker == "" {
				return eris.Errorf("document file %s missing id or ticker", path)
			}

			if err := st.PutDocument(ctx, bundle.Document, bundle.Text); err != nil {
				return eris.Wrapf(err, "store document %s", bundle.Document.ID)
			}
			imported++
		}

		zap.L().Info("documents imported", zap.Int("count", imported))
		return nil
	},
}

// -- import quarters --

var importQuartersCmd = &cobra.Command{
	Use:   "quarters <files...>",
	Short: "Normalize and import extracted raw quarters",
	Long:  "Each file holds one raw quarter object or an array of them. Quarters are scale-normalized and alignment-checked before storage; a backend that supports bulk loading receives them in one batch.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		norm := normalize.New(cfg.Normalizer)

		var quarters []*model.CompanyQuarter
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read quarters file %s", path)
			}

			raws, err := decodeRawQuarters(data)
			if err != nil {
				return eris.Wrapf(err, "parse quarters file %s", path)
			}

			for _, raw := range raws {
				q, err := norm.Normalize(raw)
				if err != nil {
					return eris.Wrapf(err, "normalize %s %s", raw.Ticker, raw.Period)
				}
				quarters = append(quarters, q)
			}
		}

		if imp, ok := st.(store.QuarterImporter); ok {
			n, err := imp.ImportQuarters(ctx, quarters)
			if err != nil {
				return eris.Wrap(err, "bulk import quarters")
			}
			zap.L().Info("quarters imported", zap.Int64("count", n), zap.Bool("bulk", true))
			return nil
		}

		for _, q := range quarters {
			if err := st.PutQuarter(ctx, q); err != nil {
				return eris.Wrapf(err, "store quarter %s %s", q.Ticker, q.Period)
			}
		}
		zap.L().Info("quarters imported", zap.Int("count", len(quarters)))
		return nil
	},
}

// decodeRawQuarters accepts either a single raw quarter object or an array.
func decodeRawQuarters(data []byte) ([]model.RawQuarter, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []model.RawQuarter
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var raw model.RawQuarter
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return []model.RawQuarter{raw}, nil
}

// -- import valuation --

var importValuationCmd = &cobra.Command{
	Use:   "valuation <files...>",
	Short: "Import analyst valuation worksheets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, path := range args {
			in, err := valuation.LoadInputs(path)
			if err != nil {
				return eris.Wrapf(err, "load worksheet %s", path)
			}

			if err := st.PutValuationInputs(ctx, in.Ticker, in); err != nil {
				return eris.Wrapf(err, "store worksheet for %s", in.Ticker)
			}

			embedded, err := importEmbeddedDocs(ctx, st, in)
			if err != nil {
				return err
			}

			zap.L().Info("worksheet imported",
				zap.String("ticker", in.Ticker),
				zap.String("as_of", in.AsOf),
				zap.Int("embedded_docs", embedded),
			)
		}
		return nil
	},
}

// importEmbeddedDocs persists the macro documents a worksheet ships with.
// An already stored document is never overwritten: the first imported
// snapshot is the point-in-time record.
func importEmbeddedDocs(ctx context.Context, st store.Store, in *valuation.Inputs) (int, error) {
	saved := 0
	for _, embedded := range in.Documents {
		if embedded.Content == "" {
			continue
		}

		_, _, err := st.GetDocument(ctx, embedded.ID)
		if err == nil {
			continue
		}
		if !store.IsNotFound(err) {
			return saved, eris.Wrapf(err, "check document %s", embedded.ID)
		}

		doc := embedded.Document
		if doc.PITHash == "" {
			sum := sha256.Sum256([]byte(embedded.Content))
			doc.PITHash = hex.EncodeToString(sum[:])
		}
		if err := st.PutDocument(ctx, doc, embedded.Content); err != nil {
			return saved, eris.Wrapf(err, "store embedded document %s", doc.ID)
		}
		saved++
	}
	return saved, nil
}

func init() {
	importCmd.AddCommand(importDocsCmd)
	importCmd.AddCommand(importQuartersCmd)
	importCmd.AddCommand(importValuationCmd)
	rootCmd.AddCommand(importCmd)
}
