package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/common"
	"github.com/yildizm/logsift/internal/parser"
	"github.com/yildizm/logsift/internal/pipeline"
)

var (
	watchMinLevel    string
	watchRecommend   bool
	watchMetricsAddr string
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Watch a log file and classify new entries as they arrive",
		Long: `Monitor a log file for changes and parse new entries in real-time.

Uses file system notifications to detect changes and runs each batch of
appended lines through the pipeline. Records at or above --level are
printed. Press Ctrl+C to stop watching.

Examples:
  logsift watch app.log
  logsift watch --level error --recommend app.log
  logsift watch --metrics-addr :9102 app.log`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().StringVar(&watchMinLevel, "level", "warning", "minimum level to print")
	cmd.Flags().BoolVar(&watchRecommend, "recommend", false, "print advice for every printed record")
	cmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	filename := args[0]

	minLevel, ok := common.ParseLevel(watchMinLevel)
	if !ok {
		return common.NewInputError(fmt.Sprintf("unknown level %q", watchMinLevel), nil)
	}

	// Setup file watcher
	watcher, file, cleanup, err := setupFileWatcher(filename)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, _, err := newService(cmd)
	if err != nil {
		return err
	}
	defer closeService(svc)

	if watchMetricsAddr != "" {
		stop := serveMetrics(svc, watchMetricsAddr)
		defer stop()
	}

	w := &tail{
		svc:       svc,
		file:      file,
		name:      filepath.Base(filename),
		minLevel:  minLevel,
		recommend: watchRecommend,
		out:       cmd.OutOrStdout(),
	}
	return w.run(cmd.Context(), watcher)
}

// tail feeds lines appended to a file through the pipeline
type tail struct {
	svc       *pipeline.Service
	file      *os.File
	name      string
	minLevel  common.Level
	recommend bool
	out       io.Writer
}

// readNewLines returns the complete lines appended since the last read
func (t *tail) readNewLines() ([]string, error) {
	limit := t.svc.Config().Pipeline.MaxLineLength
	if limit <= 0 {
		limit = maxInputSize
	}
	return parser.ReadLines(t.file, limit)
}

func (t *tail) processNewLines(ctx context.Context) error {
	newLines, err := t.readNewLines()
	if err != nil {
		return err
	}
	if len(newLines) == 0 {
		return nil
	}

	records, err := t.svc.Parse(ctx, []byte(strings.Join(newLines, "\n")), t.name)
	if err != nil {
		return fmt.Errorf("failed to parse lines: %w", err)
	}

	var shown []common.Record
	for _, r := range records {
		if r.Level >= t.minLevel {
			shown = append(shown, r)
		}
	}
	if len(shown) == 0 {
		return nil
	}

	var recs []common.Recommendation
	if t.recommend {
		recs = t.svc.RecommendBatch(ctx, shown)
	}
	for i, r := range shown {
		fmt.Fprintf(t.out, "[%s] %s %s: %s\n", r.Timestamp, r.Level, r.Source, singleLine(r.Message))
		fmt.Fprintf(t.out, "    problem: %s\n", r.Problem)
		if i < len(recs) {
			fmt.Fprintf(t.out, "    advice:  %s\n", singleLine(recs[i].Content))
		}
	}
	return nil
}

// run is the main watch loop. It returns when ctx is cancelled.
func (t *tail) run(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			if isVerbose() {
				fmt.Fprintf(os.Stderr, "\nStopping watch...\n")
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if err := t.handleWatchEvent(ctx, event); err != nil && isVerbose() {
				fmt.Fprintf(os.Stderr, "Error handling event: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			if isVerbose() {
				fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
			}
		}
	}
}

// handleWatchEvent processes file system events. A truncated file is read
// again from the start.
func (t *tail) handleWatchEvent(ctx context.Context, event fsnotify.Event) error {
	if event.Op&fsnotify.Write != fsnotify.Write {
		return nil
	}

	info, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	offset, err := t.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to read file offset: %w", err)
	}
	if info.Size() < offset {
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind truncated file: %w", err)
		}
	}

	if err := t.processNewLines(ctx); err != nil {
		return fmt.Errorf("error processing new lines: %w", err)
	}
	return nil
}

// serveMetrics exposes the pipeline registry over HTTP until the returned
// function is called
func serveMetrics(svc *pipeline.Service, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", svc.Metrics().Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Warning: metrics server stopped: %v\n", err)
		}
	}()
	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Serving metrics on %s/metrics\n", addr)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// cleanupWatcher safely closes watcher with error logging
func cleanupWatcher(watcher *fsnotify.Watcher) {
	if err := watcher.Close(); err != nil && isVerbose() {
		fmt.Fprintf(os.Stderr, "Warning: failed to close watcher: %v\n", err)
	}
}

// cleanupFile safely closes file with error logging
func cleanupFile(file *os.File) {
	if err := file.Close(); err != nil && isVerbose() {
		fmt.Fprintf(os.Stderr, "Warning: failed to close file: %v\n", err)
	}
}

// createWatcher creates and configures a new file system watcher
func createWatcher(filename string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filename); err != nil {
		cleanupWatcher(watcher)
		return nil, fmt.Errorf("failed to watch file: %w", err)
	}

	return watcher, nil
}

// openWatchFile opens the file positioned at its end
func openWatchFile(filename string) (*os.File, error) {
	// #nosec G304 - path is validated by caller
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		cleanupFile(file)
		return nil, fmt.Errorf("failed to seek to end of file: %w", err)
	}

	return file, nil
}

// setupFileWatcher creates and configures file watcher
func setupFileWatcher(filename string) (*fsnotify.Watcher, *os.File, func(), error) {
	if err := validateFilePath(filename); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid file path: %w", err)
	}
	filename = filepath.Clean(filename)

	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Watching file: %s\n", filename)
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop...\n\n")
	}

	watcher, err := createWatcher(filename)
	if err != nil {
		return nil, nil, nil, err
	}

	file, err := openWatchFile(filename)
	if err != nil {
		cleanupWatcher(watcher)
		return nil, nil, nil, err
	}

	cleanup := func() {
		cleanupWatcher(watcher)
		cleanupFile(file)
	}

	return watcher, file, cleanup, nil
}
