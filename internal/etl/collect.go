package etl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Collector reads every recognized artifact file of a directory.
type Collector struct {
	Logger *slog.Logger
}

// NewCollector returns a Collector logging to logger, or slog.Default() if nil.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{Logger: logger.With("component", "collector")}
}

// ArtifactFiles lists the recognized files directly under dir, in name order.
func ArtifactFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !Recognized(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// Collect parses every artifact file of dir and concatenates the records.
// Records keep their order within a file. Any read or parse failure aborts
// the whole collection and no records are returned.
func (c *Collector) Collect(ctx context.Context, dir string) ([]Record, error) {
	logger := c.logger()

	files, err := ArtifactFiles(dir)
	if err != nil {
		return nil, &CollectionError{Err: fmt.Errorf("list %s: %w", dir, err)}
	}
	logger.Info("artifact files found", "dir", dir, "extensions", Extensions(), "count", len(files))
	if len(files) == 0 {
		return nil, &NoArtifactsFoundError{Dir: dir}
	}

	var records []Record
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, &CollectionError{File: name, Err: err}
		}
		logger.Info("processing file", "file", name)

		recs, err := parseFile(filepath.Join(dir, name), name)
		if err != nil {
			logger.Error("failed to process file", "file", name, "error", err)
			return nil, &CollectionError{File: name, Err: err}
		}
		logger.Debug("file parsed", "file", name, "records", len(recs))
		records = append(records, recs...)
	}
	return records, nil
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func parseFile(path, name string) ([]Record, error) {
	p, err := ParserFor(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	content, err := decodeText(raw)
	if err != nil {
		return nil, &ParseError{File: name, Err: fmt.Errorf("decode text: %w", err)}
	}
	return p.Parse(content, name)
}

// decodeText strips a UTF-8 byte order mark and converts UTF-16 input
// (detected by its BOM) to UTF-8. Input without a BOM passes through
// untouched so parsers can honor a declared charset.
func decodeText(raw []byte) (string, error) {
	t := unicode.BOMOverride(transform.Nop)
	out, _, err := transform.Bytes(t, raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
