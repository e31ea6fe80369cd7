package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/valuation"
)

const rawQuarterJSON = `{
	"ticker": "ACME",
	"period": "2024-Q2",
	"currency": "USD",
	"income_stmt": {
		"items": {"Revenue": 7300, "EBIT": 1100},
		"scale": "thousands",
		"period_end": "2024-06-30T00:00:00Z"
	},
	"balance_sheet": {
		"items": {"Cash": 900},
		"scale": "thousands",
		"period_end": "2024-06-30T00:00:00Z"
	},
	"cash_flow": {
		"items": {"CFO": 1200},
		"scale": "thousands",
		"period_end": "2024-06-30T00:00:00Z"
	}
}`

func TestDecodeRawQuarters_SingleObject(t *testing.T) {
	raws, err := decodeRawQuarters([]byte(rawQuarterJSON))
	require.NoError(t, err)

	require.Len(t, raws, 1)
	assert.Equal(t, "ACME", raws[0].Ticker)
	assert.Equal(t, "2024-Q2", raws[0].Period)
	assert.Equal(t, 7300.0, raws[0].IncomeStmt.Items["Revenue"])
	assert.Equal(t, "thousands", raws[0].IncomeStmt.Scale)
}

func TestDecodeRawQuarters_Array(t *testing.T) {
	raws, err := decodeRawQuarters([]byte("[" + rawQuarterJSON + "," + rawQuarterJSON + "]"))
	require.NoError(t, err)

	require.Len(t, raws, 2)
	assert.Equal(t, raws[0].Ticker, raws[1].Ticker)
}

func TestDecodeRawQuarters_LeadingWhitespace(t *testing.T) {
	raws, err := decodeRawQuarters([]byte("\n\t [" + rawQuarterJSON + "]"))
	require.NoError(t, err)
	require.Len(t, raws, 1)
}

func TestDecodeRawQuarters_InvalidJSON(t *testing.T) {
	_, err := decodeRawQuarters([]byte("{not json"))
	require.Error(t, err)

	_, err = decodeRawQuarters([]byte("[{\"ticker\": 42}]"))
	require.Error(t, err)
}

func TestDocumentBundle_Unmarshal(t *testing.T) {
	payload := `{
		"document": {
			"id": "ACME-2024-07-15-9f2c",
			"ticker": "ACME",
			"doc_type": "10-Q",
			"title": "Form 10-Q Q2 2024",
			"date": "2024-07-15",
			"url": "https://www.sec.gov/Archives/acme-10q.htm",
			"pit_hash": "9f2c"
		},
		"text": "Revenue was $7,300 thousand for the quarter."
	}`

	var bundle documentBundle
	require.NoError(t, json.Unmarshal([]byte(payload), &bundle))

	assert.Equal(t, "ACME-2024-07-15-9f2c", bundle.Document.ID)
	assert.Equal(t, "ACME", bundle.Document.Ticker)
	assert.Contains(t, bundle.Text, "$7,300 thousand")
}

func TestImportEmbeddedDocs_FirstImportWins(t *testing.T) {
	st := newCmdTestStore(t)
	ctx := context.Background()

	in := &valuation.Inputs{
		Documents: []valuation.EmbeddedDocument{
			{
				Document: model.Document{
					ID:      "DOC-H15",
					Ticker:  "ACME",
					DocType: model.DocTypeMacro,
					Title:   "H.15 Selected Interest Rates",
					URL:     "https://www.federalreserve.gov/releases/h15/",
				},
				Content: "10-year Treasury constant maturity 4.00 percent",
			},
			{Document: model.Document{ID: "DOC-EMPTY"}},
		},
	}

	n, err := importEmbeddedDocs(ctx, st, in)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "content-less entries are skipped")

	doc, text, err := st.GetDocument(ctx, "DOC-H15")
	require.NoError(t, err)
	assert.Contains(t, text, "4.00 percent")
	assert.Len(t, doc.PITHash, 64, "a missing hash defaults to the content digest")

	n, err = importEmbeddedDocs(ctx, st, in)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a stored snapshot is never overwritten")
}
