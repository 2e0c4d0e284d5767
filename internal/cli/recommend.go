package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/pipeline"
)

func newRecommendCommand() *cobra.Command {
	var (
		outputFile string
		asRecords  bool
		history    int
	)

	cmd := &cobra.Command{
		Use:   "recommend [file]",
		Short: "Suggest remediation for log records",
		Long: `Produce remediation advice for every record.

Raw log files are parsed first. Files ending in .json, or any input with
--records, are read as records previously produced by "parse -o json":
a single object or a list. Advice comes from the configured LLM; when it
is unreachable a deterministic rule-based suggestion is used instead.`,
		Example: `  logsift recommend app.log
  logsift parse -o json app.log | logsift recommend --records -o markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			records, recs, err := recommendInput(cmd, svc, args, asRecords)
			if err != nil {
				return err
			}

			f, err := newFormatter(cfg)
			if err != nil {
				return err
			}
			out, err := f.FormatRecommendations(records, recs)
			if err != nil {
				return fmt.Errorf("failed to format recommendations: %w", err)
			}
			if err := writeOutput(cmd, outputFile, out); err != nil {
				return err
			}

			if history > 0 {
				printHistory(cmd.ErrOrStderr(), svc, records, history)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputFile, "output-file", "", "write output to a file instead of stdout")
	cmd.Flags().BoolVar(&asRecords, "records", false, "treat input as JSON records instead of raw log text")
	cmd.Flags().IntVar(&history, "history", 0, "print the last N advice turns per source to stderr")

	return cmd
}

func recommendInput(cmd *cobra.Command, svc *pipeline.Service, args []string, asRecords bool) ([]common.Record, []common.Recommendation, error) {
	inputs, err := readInputs(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	in := inputs[0]

	if asRecords || (len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".json")) {
		return svc.ProcessJSON(cmd.Context(), in.data)
	}

	records, err := svc.Parse(cmd.Context(), in.data, in.name)
	if err != nil {
		return nil, nil, err
	}
	return records, svc.RecommendBatch(cmd.Context(), records), nil
}

func printHistory(w io.Writer, svc *pipeline.Service, records []common.Record, n int) {
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.Source] {
			continue
		}
		seen[r.Source] = true

		turns := svc.History(r.Source, n)
		if len(turns) == 0 {
			continue
		}
		fmt.Fprintf(w, "History for %s:\n", r.Source)
		for _, t := range turns {
			fmt.Fprintf(w, "  [%s] %s: %s\n", t.At.Format("15:04:05"), t.Role, singleLine(t.Content))
		}
	}
}

func singleLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}
