package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yildizm/logsift/internal/config"
	"github.com/yildizm/logsift/internal/formatter"
	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/metrics"
	"github.com/yildizm/logsift/internal/pipeline"
)

// maxInputSize bounds a single input file
const maxInputSize = 256 << 20

// loadConfig loads the effective configuration and applies its output
// settings to the global flags left at their defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Output.Verbose {
		verbose = true
	}
	format := logFormat
	if format == "" {
		format = cfg.Output.LogFormat
	}
	if format == string(logger.FormatJSON) {
		logger.SetFormat(logger.FormatJSON)
	} else {
		logger.SetFormat(logger.FormatConsole)
	}
	return cfg, nil
}

// newService builds the pipeline for one command invocation. The caller
// must close it.
func newService(cmd *cobra.Command) (*pipeline.Service, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewWithCallback("logsift", isVerbose)
	svc, err := pipeline.New(cmd.Context(), cfg,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics.New()))
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func closeService(svc *pipeline.Service) {
	if err := svc.Close(); err != nil && isVerbose() {
		fmt.Fprintf(os.Stderr, "Warning: failed to close pipeline: %v\n", err)
	}
}

func outputFormat(cfg *config.Config) string {
	if outputFmt != "" {
		return outputFmt
	}
	if cfg.Output.DefaultFormat != "" {
		return cfg.Output.DefaultFormat
	}
	return "terminal"
}

func useColor(cfg *config.Config) bool {
	if noColor {
		return false
	}
	return cfg.Output.ColorMode != "never"
}

func newFormatter(cfg *config.Config) (formatter.Formatter, error) {
	return formatter.New(outputFormat(cfg), useColor(cfg))
}

// render writes v as indented JSON when JSON output is selected and calls
// text otherwise
func render(cmd *cobra.Command, cfg *config.Config, v any, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if outputFormat(cfg) == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	text(out)
	return nil
}

// writeOutput writes data to path, or to the command output when path is empty
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Output written to %s\n", path)
	}
	return nil
}

// input is one named chunk of raw log bytes
type input struct {
	name string
	data []byte
}

// readInputs reads every path in order. No paths, or "-", reads stdin.
func readInputs(cmd *cobra.Command, paths []string) ([]input, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	inputs := make([]input, 0, len(paths))
	for _, path := range paths {
		if path == "-" {
			if isVerbose() {
				fmt.Fprintf(os.Stderr, "Reading from stdin...\n")
			}
			data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxInputSize))
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			inputs = append(inputs, input{name: "stdin", data: data})
			continue
		}

		data, err := readInputFile(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input{name: filepath.Base(path), data: data})
	}
	return inputs, nil
}

func readInputFile(path string) ([]byte, error) {
	if err := validateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	// #nosec G304 - path is validated above
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil && isVerbose() {
			fmt.Fprintf(os.Stderr, "Warning: failed to close file: %v\n", err)
		}
	}()

	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Reading file: %s\n", path)
	}
	data, err := io.ReadAll(io.LimitReader(file, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// validateFilePath validates that a file path is safe to read
func validateFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty file path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("must be a file, not a directory")
	}
	return nil
}
