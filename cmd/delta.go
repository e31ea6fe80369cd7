package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/delta"
	"github.com/sells-group/dossier-cli/internal/model"
)

var deltaCmd = &cobra.Command{
	Use:   "delta <ticker>",
	Short: "Print the quarter-over-quarter delta table",
	Long:  "Recomputes tracked-metric deltas from the stored quarter history without touching the persisted dossier.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		history, err := st.ListQuarters(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "delta")
		}
		if len(history) == 0 {
			fmt.Fprintf(os.Stderr, "No quarters stored for %s.\n", args[0])
			return nil
		}

		entries, err := delta.Compute(history)
		if err != nil {
			return eris.Wrap(err, "delta")
		}

		formatDeltaTable(os.Stdout, entries)
		return nil
	},
}

func formatDeltaTable(out io.Writer, entries map[string]model.DeltaEntry) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tCURRENT\tQOQ\tQOQ%\tYOY\tYOY%")
	_, _ = fmt.Fprintln(w, "------\t-------\t---\t----\t---\t----")

	for _, name := range names {
		e := entries[name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			name,
			formatLeg(e.Current, false),
			formatLeg(e.QoQ, false),
			formatLeg(e.QoQPercent, true),
			formatLeg(e.YoY, false),
			formatLeg(e.YoYPercent, true),
		)
	}
	_ = w.Flush()
}

// formatLeg renders a delta leg, leaving insufficient-history legs blank.
func formatLeg(v *float64, percent bool) string {
	if v == nil {
		return "-"
	}
	if percent {
		return fmt.Sprintf("%.1f%%", *v*100)
	}
	return fmt.Sprintf("%.4g", *v)
}

func init() {
	rootCmd.AddCommand(deltaCmd)
}
