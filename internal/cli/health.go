package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the caches, LLM and reference index",
		Long: `Probe every collaborator and report its state.

The pipeline keeps working when any of them is down; the overall status is
then "degraded".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			h := svc.Health(cmd.Context())
			return render(cmd, cfg, h, func(w io.Writer) {
				fmt.Fprintf(w, "Status: %s\n\n", h.Status)

				fmt.Fprintln(w, "Parse cache:")
				writeCacheStats(indent{w}, h.ParseCache)
				fmt.Fprintln(w, "Hint cache:")
				writeCacheStats(indent{w}, h.HintCache)

				fmt.Fprintf(w, "LLM: %s", h.LLM.Status)
				if h.LLM.Provider != "" {
					fmt.Fprintf(w, " (%s, model %s, available: %t)", h.LLM.Provider, h.LLM.Model, h.LLM.ModelAvailable)
				}
				fmt.Fprintln(w)
				if h.LLM.Error != "" {
					fmt.Fprintf(w, "  error: %s\n", h.LLM.Error)
				}

				fmt.Fprintln(w, "Collections:")
				names := make([]string, 0, len(h.Collections))
				for name := range h.Collections {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(w, "  %-20s %d\n", name, h.Collections[name])
				}
			})
		},
	}
}

func newLLMCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Work with the recommendation model",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a short prompt to check the model answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			status := svc.TestLLM(cmd.Context())
			if err := render(cmd, cfg, status, func(w io.Writer) {
				fmt.Fprintln(w, status.Status)
				if status.Model != "" {
					fmt.Fprintf(w, "Model: %s\n", status.Model)
				}
				if status.Error != "" {
					fmt.Fprintf(w, "Error: %s\n", status.Error)
				}
			}); err != nil {
				return err
			}
			if status.Error != "" {
				return fmt.Errorf("llm test failed: %s", status.Error)
			}
			return nil
		},
	})

	return cmd
}

// indent prefixes every write with two spaces. Each write is one line.
type indent struct {
	w io.Writer
}

func (i indent) Write(p []byte) (int, error) {
	if _, err := io.WriteString(i.w, "  "); err != nil {
		return 0, err
	}
	return i.w.Write(p)
}
