package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/cache"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the result caches",
		Long: `Inspect and clear the Redis caches.

Parse results and recommendations live in separate databases; --hints
selects the recommendation cache.`,
	}

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	var hints bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			if hints {
				stats := svc.HintStats(cmd.Context())
				return render(cmd, cfg, stats, func(w io.Writer) {
					writeCacheStats(w, stats.Stats)
					fmt.Fprintf(w, "TTL:        %ds\n", stats.TTLSeconds)
				})
			}

			stats := svc.Stats(cmd.Context())
			return render(cmd, cfg, stats, func(w io.Writer) {
				writeCacheStats(w, stats)
			})
		},
	}

	cmd.Flags().BoolVar(&hints, "hints", false, "show the recommendation cache")

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var hints bool

	cmd := &cobra.Command{
		Use:   "clear [pattern]",
		Short: "Delete cached entries matching a key pattern",
		Long: `Delete cached entries whose keys match a Redis glob pattern.

Without a pattern every parse result is removed, or every recommendation
with --hints.`,
		Example: `  logsift cache clear
  logsift cache clear --hints 'hint_batch:*'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeService(svc)

			var pattern string
			if len(args) == 1 {
				pattern = args[0]
			}

			clearFn := svc.Clear
			if hints {
				clearFn = svc.ClearHints
			}
			deleted, err := clearFn(cmd.Context(), pattern)
			if err != nil {
				return err
			}

			result := struct {
				Deleted int `json:"deleted"`
			}{deleted}
			return render(cmd, cfg, result, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %d cache entries\n", deleted)
			})
		},
	}

	cmd.Flags().BoolVar(&hints, "hints", false, "clear the recommendation cache")

	return cmd
}

func writeCacheStats(w io.Writer, s cache.Stats) {
	fmt.Fprintf(w, "Status:     %s\n", s.Status)
	if s.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", s.Error)
	}
	if s.Status != cache.StatusConnected {
		return
	}
	fmt.Fprintf(w, "Database:   %d\n", s.DB)
	fmt.Fprintf(w, "Memory:     %s\n", s.UsedMemory)
	fmt.Fprintf(w, "Keys:       %d (%d hints, %d batches)\n", s.Keys, s.HintKeys, s.BatchKeys)
	fmt.Fprintf(w, "Hit rate:   %.1f%% (%d hits, %d misses)\n", s.HitRate, s.Hits, s.Misses)
}
