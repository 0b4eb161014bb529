// Package fileio encodes and decodes frames as CSV or JSON records.
package fileio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// Format is a supported file content type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists the supported formats, for enum parameters.
var Formats = []string{string(FormatCSV), string(FormatJSON)}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected csv or json)", s)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Read decodes a frame from r.
func Read(r io.Reader, format Format) (*core.Frame, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Write encodes a frame to w.
func Write(w io.Writer, f *core.Frame, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, f)
	case FormatJSON:
		return WriteJSON(w, f)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// ReadFile decodes the file at path.
func ReadFile(path string, format Format) (*core.Frame, error) {
	file, err := os.Open(path) //nolint:gosec // path is an operation parameter
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	f, err := Read(file, format)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// WriteFile encodes f into the file at path, creating parent directories.
func WriteFile(path string, f *core.Frame, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path) //nolint:gosec // path is an operation parameter
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(file, f, format); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
