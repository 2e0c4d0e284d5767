package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/common"
)

func newProblemsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "problems",
		Short: "Inspect the problem patterns used for classification",
		Long: `Inspect and validate the problem patterns records are classified against.

Patterns come from the built-in set, or from the file named by
patterns.problems_file in the configuration.`,
	}

	cmd.AddCommand(newProblemsStatsCommand())
	cmd.AddCommand(newProblemsListCommand())
	cmd.AddCommand(newProblemsValidateCommand())

	return cmd
}

func newProblemsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count patterns per category and severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			stats := svc.ProblemStats()
			return render(cmd, cfg, stats, func(w io.Writer) {
				fmt.Fprintf(w, "Total problems: %d\n", stats.TotalProblems)
				fmt.Fprintln(w, "\nCategories:")
				writeCounts(w, stats.Categories)
				fmt.Fprintln(w, "\nSeverities:")
				writeCounts(w, stats.Severities)
			})
		},
	}
}

func newProblemsListCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories, or the patterns of one category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			if category == "" {
				categories := svc.Categories()
				return render(cmd, cfg, categories, func(w io.Writer) {
					for _, c := range categories {
						fmt.Fprintln(w, c)
					}
				})
			}

			summaries := svc.ProblemsByCategory(category)
			return render(cmd, cfg, summaries, func(w io.Writer) {
				if len(summaries) == 0 {
					fmt.Fprintf(w, "No patterns in category %s\n", category)
					return
				}
				fmt.Fprintf(w, "Found %d patterns in %s:\n\n", len(summaries), category)
				for _, p := range summaries {
					fmt.Fprintf(w, "  %s [%s]\n", p.Title, p.Severity)
					if p.Description != "" {
						fmt.Fprintf(w, "    %s\n", p.Description)
					}
					for _, pattern := range p.Patterns {
						fmt.Fprintf(w, "    - %s\n", pattern)
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "show the patterns of this category")

	return cmd
}

func newProblemsValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Validate problem pattern files",
		Long: `Validate one or more problem pattern YAML files.

Checks YAML syntax and verifies every pattern has a title and a category.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				problems, err := common.LoadProblems(path)
				if err != nil {
					fmt.Fprintf(out, "✗ %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "✓ %s: %d patterns\n", path, len(problems))
			}
			if failed > 0 {
				return common.NewInputError(fmt.Sprintf("%d of %d files failed validation", failed, len(args)), nil)
			}
			return nil
		},
	}
}

func writeCounts(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
	}
}
