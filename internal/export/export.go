// Package export renders a committed dossier as an xlsx workbook for
// analysts who review offline: one sheet per report section.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Write renders the report to an xlsx workbook at path. Sheets: Summary,
// Gates, Valuation, Metrics, Delta, Triggers.
func Write(report *model.Report, path string) error {
	if report == nil {
		return eris.New("export: nil report")
	}
	f := xlsx.NewFile()

	if err := summarySheet(f, report); err != nil {
		return err
	}
	if err := gatesSheet(f, report); err != nil {
		return err
	}
	if err := valuationSheet(f, report); err != nil {
		return err
	}
	if err := metricsSheet(f, report); err != nil {
		return err
	}
	if err := deltaSheet(f, report); err != nil {
		return err
	}
	if err := triggersSheet(f, report); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

// addRow appends one row, mapping Go values onto cells. nil and nil
// *float64 render as empty cells so NA stays visibly absent.
func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch x := v.(type) {
		case nil:
		case string:
			cell.Value = x
		case float64:
			cell.SetFloat(x)
		case int:
			cell.SetInt(x)
		case *float64:
			if x != nil {
				cell.SetFloat(*x)
			}
		default:
			cell.Value = fmt.Sprintf("%v", x)
		}
	}
}

func summarySheet(f *xlsx.File, report *model.Report) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(sheet, "Ticker", report.Ticker)
	addRow(sheet, "Run ID", report.RunID)
	addRow(sheet, "Generated", report.GeneratedAt.Format("2006-01-02"))
	addRow(sheet, "Path", string(report.Analyst.Path))
	addRow(sheet, "Headline", report.Analyst.Headline)
	addRow(sheet, "QA Status", string(report.Verifier.Status))
	for i, reason := range report.Verifier.Reasons {
		addRow(sheet, fmt.Sprintf("QA Reason %d", i+1), reason)
	}
	if len(report.Analyst.PathReasons) > 0 {
		addRow(sheet, "Path Reasons", strings.Join(report.Analyst.PathReasons, "; "))
	}
	return nil
}

func gatesSheet(f *xlsx.File, report *model.Report) error {
	sheet, err := f.AddSheet("Gates")
	if err != nil {
		return eris.Wrap(err, "export: add gates sheet")
	}
	addRow(sheet, "Gate", "Hard/Soft", "What it means", "Pass rule", "Result", "Flip deadline", "Metrics & sources")
	rows := append([]model.GateRow{}, report.Analyst.Stage0.Hard...)
	rows = append(rows, report.Analyst.Stage0.Soft...)
	for _, row := range rows {
		deadline := ""
		if row.FlipTrigger != nil {
			deadline = row.FlipTrigger.Deadline
		}
		addRow(sheet,
			row.Gate,
			string(row.Hardness),
			row.WhatItMeans,
			row.PassRule,
			string(row.Result),
			deadline,
			strings.Join(row.MetricsSources, "; "),
		)
	}
	return nil
}

func valuationSheet(f *xlsx.File, report *model.Report) error {
	sheet, err := f.AddSheet("Valuation")
	if err != nil {
		return eris.Wrap(err, "export: add valuation sheet")
	}
	block := report.Analyst.ReverseDCF
	if block == nil {
		addRow(sheet, "No valuation worksheet imported")
		return nil
	}

	addRow(sheet, "WACC point", block.WACC.Point)
	addRow(sheet, "WACC band low", block.WACC.Band[0])
	addRow(sheet, "WACC band high", block.WACC.Band[1])
	addRow(sheet, "Cost of equity", block.WACC.CostOfEquity)
	addRow(sheet, "Cost of debt (after tax)", block.WACC.CostOfDebtAfterTax)
	addRow(sheet, "Terminal growth", block.TerminalGrowth.Value)
	addRow(sheet, "Hurdle base", block.Hurdle.Base)
	for _, adj := range block.Hurdle.Adjustments {
		addRow(sheet, "Hurdle adjustment: "+adj.Name, adj.Bps/10000.0)
	}
	addRow(sheet, "Hurdle", block.Hurdle.Value)
	addRow(sheet, "Share price", block.SharePrice)
	addRow(sheet, "Shares diluted", block.SharesDiluted)
	addRow(sheet, "Net debt", block.NetDebt)

	addRow(sheet)
	addRow(sheet, "Scenario", "Y1", "Y2", "Y3", "Y4", "Y5", "Implied IRR")
	for _, sc := range block.Scenarios {
		values := []any{sc.Name}
		for _, fcf := range sc.FCFPath {
			values = append(values, fcf)
		}
		if sc.IRR != nil {
			values = append(values, *sc.IRR)
		} else {
			values = append(values, "did not converge")
		}
		addRow(sheet, values...)
	}

	addRow(sheet)
	addRow(sheet, "Sensitivity", "Implied IRR")
	for _, key := range sortedKeys(block.Sensitivity) {
		addRow(sheet, key, block.Sensitivity[key])
	}
	return nil
}

func metricsSheet(f *xlsx.File, report *model.Report) error {
	sheet, err := f.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "export: add metrics sheet")
	}
	addRow(sheet, "Metric", "Value", "Unit", "Period", "Source", "Quote")
	for _, m := range report.Analyst.Metrics {
		value := any(m.Text)
		if m.Value != nil {
			value = *m.Value
		}
		addRow(sheet, m.Name, value, m.Unit, m.Period, m.Provenance.SourceDocID, m.Provenance.Quote)
	}
	return nil
}

func deltaSheet(f *xlsx.File, report *model.Report) error {
	sheet, err := f.AddSheet("Delta")
	if err != nil {
		return eris.Wrap(err, "export: add delta sheet")
	}
	addRow(sheet, "Metric", "Current", "QoQ", "QoQ %", "YoY", "YoY %")
	for _, name := range sortedKeys(report.Delta) {
		entry := report.Delta[name]
		addRow(sheet, name, entry.Current, entry.QoQ, entry.QoQPercent, entry.YoY, entry.YoYPercent)
	}
	return nil
}

func triggersSheet(f *xlsx.File, report *model.Report) error {
	sheet, err := f.AddSheet("Triggers")
	if err != nil {
		return eris.Wrap(err, "export: add triggers sheet")
	}
	addRow(sheet, "Metric", "Operator", "Threshold", "Deadline", "Status", "Message", "Days remaining")
	for _, alert := range report.Triggers {
		addRow(sheet,
			alert.Trigger.Metric,
			string(alert.Trigger.Operator),
			alert.Trigger.Threshold,
			alert.Trigger.Deadline,
			string(alert.Status),
			alert.Message,
			alert.DaysRemaining,
		)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
