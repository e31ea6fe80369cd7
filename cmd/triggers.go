package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/triggers"
)

var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "Manage covenant-style watch triggers",
	Long:  "Commands for registering trigger definitions, listing them, and projecting them against the latest dossier metrics.",
}

// -- triggers add --

var (
	triggerMetric    string
	triggerThreshold float64
	triggerOperator  string
	triggerDeadline  string
	triggerFile      string
)

// triggerDef is the YAML import shape for bulk trigger registration.
type triggerDef struct {
	Ticker    string  `yaml:"ticker"`
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
	Operator  string  `yaml:"operator"`
	Deadline  string  `yaml:"deadline"`
}

var triggersAddCmd = &cobra.Command{
	Use:   "add [ticker]",
	Short: "Register trigger definitions",
	Long:  "Registers a single trigger from flags, or a batch from a YAML file of definitions via --file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if triggerFile != "" {
			n, err := addTriggersFromFile(cmd, st, triggerFile)
			if err != nil {
				return err
			}
			zap.L().Info("triggers registered", zap.Int("count", n), zap.String("file", triggerFile))
			return nil
		}

		if len(args) != 1 {
			return eris.New("ticker argument is required unless --file is given")
		}

		trig, err := triggers.NewTrigger(args[0], triggerMetric, triggerThreshold, model.TriggerOperator(triggerOperator), triggerDeadline)
		if err != nil {
			return err
		}

		if err := st.AddTrigger(ctx, trig); err != nil {
			return eris.Wrap(err, "store trigger")
		}

		zap.L().Info("trigger registered",
			zap.String("id", trig.ID),
			zap.String("ticker", trig.Ticker),
			zap.String("metric", trig.Metric),
		)
		return nil
	},
}

func addTriggersFromFile(cmd *cobra.Command, st store.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "read trigger file %s", path)
	}

	var defs []triggerDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return 0, eris.Wrapf(err, "parse trigger file %s", path)
	}

	for i, def := range defs {
		trig, err := triggers.NewTrigger(def.Ticker, def.Metric, def.Threshold, model.TriggerOperator(def.Operator), def.Deadline)
		if err != nil {
			return 0, eris.Wrapf(err, "definition %d in %s", i+1, path)
		}
		if err := st.AddTrigger(cmd.Context(), trig); err != nil {
			return 0, eris.Wrapf(err, "store trigger for %s", def.Ticker)
		}
	}
	return len(defs), nil
}

// -- triggers list --

var triggersListCmd = &cobra.Command{
	Use:   "list <ticker>",
	Short: "List registered triggers for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		defs, err := st.ListTriggers(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "triggers list")
		}
		if len(defs) == 0 {
			fmt.Fprintln(os.Stderr, "No triggers registered.")
			return nil
		}

		formatTriggerList(os.Stdout, defs)
		return nil
	},
}

func formatTriggerList(out io.Writer, defs []model.Trigger) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMETRIC\tCONDITION\tDEADLINE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t--------\t-------")

	for _, d := range defs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s %v\t%s\t%s\n",
			truncateID(d.ID),
			d.Metric,
			d.Operator,
			d.Threshold,
			d.Deadline,
			d.CreatedAt.Format("2006-01-02"),
		)
	}
	_ = w.Flush()
}

// truncateID shortens UUIDs for table output.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// -- triggers evaluate --

var triggersEvalAsOf string

var triggersEvalCmd = &cobra.Command{
	Use:   "evaluate <ticker>",
	Short: "Project triggers against the latest dossier metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		today := time.Now().UTC()
		if triggersEvalAsOf != "" {
			today, err = parseDateFlag("--as-of", triggersEvalAsOf)
			if err != nil {
				return err
			}
		}

		alerts, err := evaluateTickerTriggers(ctx, st, args[0], today)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts.")
			return nil
		}

		formatAlerts(os.Stdout, alerts)
		return nil
	},
}

// evaluateTickerTriggers projects a ticker's triggers against its latest
// dossier metrics. With no dossier stored yet, every trigger projects as
// PENDING rather than failing the evaluation.
func evaluateTickerTriggers(ctx context.Context, st store.Store, ticker string, today time.Time) ([]model.TriggerAlert, error) {
	defs, err := st.ListTriggers(ctx, ticker)
	if err != nil {
		return nil, eris.Wrapf(err, "list triggers for %s", ticker)
	}
	if len(defs) == 0 {
		return nil, nil
	}

	values := map[string]float64{}
	report, err := st.GetReport(ctx, ticker)
	switch {
	case err == nil:
		values = reportMetricValues(report)
	case store.IsNotFound(err):
	default:
		return nil, eris.Wrapf(err, "load report for %s", ticker)
	}

	return triggers.Evaluate(defs, values, today), nil
}

func reportMetricValues(report *model.Report) map[string]float64 {
	values := make(map[string]float64, len(report.Analyst.Metrics))
	for _, m := range report.Analyst.Metrics {
		if v, ok := m.Numeric(); ok {
			values[m.Name] = v
		}
	}
	return values
}

func formatAlerts(out io.Writer, alerts []model.TriggerAlert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tMETRIC\tDAYS_LEFT\tMESSAGE")
	_, _ = fmt.Fprintln(w, "------\t------\t---------\t-------")

	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			a.Status,
			a.Trigger.Metric,
			a.DaysRemaining,
			a.Message,
		)
	}
	_ = w.Flush()
}

func init() {
	triggersAddCmd.Flags().StringVar(&triggerMetric, "metric", "", "metric name, e.g. \"Gross Margin\"")
	triggersAddCmd.Flags().Float64Var(&triggerThreshold, "threshold", 0, "covenant threshold")
	triggersAddCmd.Flags().StringVar(&triggerOperator, "op", "gte", "covenant operator: gte|lte|gt|lt|eq")
	triggersAddCmd.Flags().StringVar(&triggerDeadline, "deadline", "", "deadline YYYY-MM-DD")
	triggersAddCmd.Flags().StringVar(&triggerFile, "file", "", "YAML file of trigger definitions")

	triggersEvalCmd.Flags().StringVar(&triggersEvalAsOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")

	triggersCmd.AddCommand(triggersAddCmd)
	triggersCmd.AddCommand(triggersListCmd)
	triggersCmd.AddCommand(triggersEvalCmd)
	rootCmd.AddCommand(triggersCmd)
}
