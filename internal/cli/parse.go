package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/metrics"
	"github.com/yildizm/logsift/internal/pipeline"
)

func newParseCommand() *cobra.Command {
	var (
		outputFile  string
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Normalize log files into structured records",
		Long: `Parse raw log text into one structured record per log entry.

Lines are grouped so that continuation lines (stack traces, indented
details) stay with the line that started them. Each record carries a
normalized timestamp, level, source, message and problem label. Input
is read from the given files in order, or from stdin when none are given.`,
		Example: `  logsift parse app.log
  logsift parse -o json app.log worker.log > records.json
  cat app.log | logsift parse -o markdown --output-file report.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			records, err := parseAll(cmd, svc, args)
			if err != nil {
				return err
			}

			f, err := newFormatter(cfg)
			if err != nil {
				return err
			}
			out, err := f.Format(records)
			if err != nil {
				return fmt.Errorf("failed to format records: %w", err)
			}
			if err := writeOutput(cmd, outputFile, out); err != nil {
				return err
			}

			if showMetrics {
				printMetrics(svc.Metrics())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputFile, "output-file", "", "write output to a file instead of stdout")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print pipeline counters to stderr when done")

	return cmd
}

// parseAll parses every input and concatenates the records in input order
func parseAll(cmd *cobra.Command, svc *pipeline.Service, paths []string) ([]common.Record, error) {
	inputs, err := readInputs(cmd, paths)
	if err != nil {
		return nil, err
	}

	records := []common.Record{}
	for _, in := range inputs {
		parsed, err := svc.Parse(cmd.Context(), in.data, in.name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.name, err)
		}
		records = append(records, parsed...)
	}
	return records, nil
}

func printMetrics(m *metrics.Registry) {
	samples, err := m.Snapshot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to gather metrics: %v\n", err)
		return
	}
	for _, s := range samples {
		fmt.Fprintf(os.Stderr, "%s%s %g\n", s.Name, formatLabels(s.Labels), s.Value)
	}
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}
