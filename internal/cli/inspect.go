package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/common"
)

// lineArgs joins args into one text, reading stdin when the only arg is "-"
func lineArgs(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		inputs, err := readInputs(cmd, args)
		if err != nil {
			return "", err
		}
		return string(inputs[0].data), nil
	}
	return strings.Join(args, " "), nil
}

func newInspectCommand() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "inspect <line>",
		Short: "Show how a single log entry is understood",
		Long: `Run field extraction and classification on one entry and report which
strategy resolved each field. Pass "-" to read a multi-line entry from stdin.`,
		Example: `  logsift inspect '2025-07-22 09:15:01 ERROR [db] connection refused'
  logsift inspect --filename worker.log 'Traceback (most recent call last):'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			text, err := lineArgs(cmd, args)
			if err != nil {
				return err
			}
			in, err := svc.InspectLine(cmd.Context(), text, filename)
			if err != nil {
				return err
			}

			return render(cmd, cfg, in, func(w io.Writer) {
				fmt.Fprintf(w, "Timestamp: %s (%s)\n", in.Timestamp, in.TimestampFrom)
				fmt.Fprintf(w, "Level:     %s (%s)\n", in.Level, in.LevelFrom)
				fmt.Fprintf(w, "Source:    %s (%s)\n", in.Source, in.SourceFrom)
				fmt.Fprintf(w, "Message:   %s\n", in.Message)
				fmt.Fprintf(w, "Problem:   %s\n", in.Problem)
				if in.Classification.Title != "" {
					fmt.Fprintf(w, "Match:     %s [%s] confidence %.2f\n",
						in.Classification.Title, in.Classification.Category, in.Classification.Confidence)
					fmt.Fprintf(w, "Reasoning: %s\n", in.Classification.Reasoning)
				}
			})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "file name used as a source hint")

	return cmd
}

func newClassifyCommand() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify free text against the problem patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, ok := common.ParseLevel(level)
			if !ok {
				return common.NewInputError(fmt.Sprintf("unknown level %q", level), nil)
			}

			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			text, err := lineArgs(cmd, args)
			if err != nil {
				return err
			}
			class, problem := svc.ClassifyText(cmd.Context(), text, lvl)

			result := struct {
				Classification common.Classification `json:"classification"`
				Problem        string                `json:"problem"`
			}{class, problem}
			return render(cmd, cfg, result, func(w io.Writer) {
				fmt.Fprintf(w, "Problem: %s\n", problem)
				if class.Title == "" {
					fmt.Fprintln(w, "No pattern matched above the threshold")
					return
				}
				fmt.Fprintf(w, "Pattern: %s [%s, %s]\n", class.Title, class.Category, class.Severity)
				fmt.Fprintf(w, "Confidence: %.2f\n", class.Confidence)
				fmt.Fprintf(w, "Reasoning: %s\n", class.Reasoning)
			})
		},
	}

	cmd.Flags().StringVar(&level, "level", "ERROR", "level the text was logged at")

	return cmd
}

func newQueryCommand() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "query <collection> <text>",
		Short: "Find the reference examples nearest to text",
		Long: `Query one reference collection (problems, timestamp_patterns,
level_patterns or source_patterns) for the examples most similar to text.`,
		Example: `  logsift query source_patterns 'kafka consumer lag increasing'`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			matches, err := svc.QueryComponent(cmd.Context(), args[0], strings.Join(args[1:], " "), k)
			if err != nil {
				return err
			}

			return render(cmd, cfg, matches, func(w io.Writer) {
				if len(matches) == 0 {
					fmt.Fprintln(w, "No matches")
					return
				}
				for i, m := range matches {
					fmt.Fprintf(w, "%d. %.2f  %s\n", i+1, m.Confidence, singleLine(m.Document))
					for key, value := range m.Metadata {
						fmt.Fprintf(w, "     %s: %s\n", key, value)
					}
				}
			})
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 3, "number of matches")

	return cmd
}

func newKnowledgeCommand() *cobra.Command {
	var samples int

	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "List the loaded reference collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			infos, err := svc.Knowledge(cmd.Context(), samples)
			if err != nil {
				return err
			}

			return render(cmd, cfg, infos, func(w io.Writer) {
				for _, info := range infos {
					fmt.Fprintf(w, "%s: %d documents\n", info.Name, info.Count)
					for _, doc := range info.Samples {
						fmt.Fprintf(w, "  - %s\n", singleLine(doc.Text))
					}
				}
			})
		},
	}

	cmd.Flags().IntVar(&samples, "samples", 3, "sample documents shown per collection")

	return cmd
}
