// Package ghactions writes step outputs and the job summary the way GitHub
// Actions expects them: appended to the files named by $GITHUB_OUTPUT and
// $GITHUB_STEP_SUMMARY.
package ghactions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Writer writes step outputs and the job summary
type Writer struct {
	outputFile  string
	summaryFile string
	stdout      io.Writer
	logger      *slog.Logger
}

// NewWriter creates a writer. Empty file names fall back to logging the
// outputs and printing the summary to stdout.
func NewWriter(outputFile, summaryFile string, stdout io.Writer, logger *slog.Logger) *Writer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		outputFile:  outputFile,
		summaryFile: summaryFile,
		stdout:      stdout,
		logger:      logger,
	}
}

// SetOutput appends name=value to the step outputs
func (w *Writer) SetOutput(name, value string) error {
	if w.outputFile == "" {
		w.logger.Info("step output", "name", name, "value", value)
		return nil
	}

	line, err := formatOutput(name, value)
	if err != nil {
		return err
	}
	return appendFile(w.outputFile, line)
}

// WriteSummary appends markdown to the job summary
func (w *Writer) WriteSummary(markdown string) error {
	if w.summaryFile == "" {
		_, err := io.WriteString(w.stdout, markdown)
		return err
	}
	return appendFile(w.summaryFile, markdown)
}

// formatOutput renders one output entry. Multi-line values use the
// heredoc form with a random delimiter.
func formatOutput(name, value string) (string, error) {
	if strings.ContainsAny(name, "=\r\n") || name == "" {
		return "", fmt.Errorf("invalid output name %q", name)
	}
	if !strings.ContainsAny(value, "\r\n") {
		return name + "=" + value + "\n", nil
	}

	delimiter, err := randomDelimiter()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter), nil
}

func randomDelimiter() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate output delimiter: %w", err)
	}
	return "ghadelimiter_" + hex.EncodeToString(buf), nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	//nolint:errcheck // Defer close on summary file
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
