package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/qanta"
)

// formatExt maps an output format to its file extension.
func formatExt(format string) string {
	switch format {
	case "jsonl":
		return ".jsonl"
	case "json":
		return ".json"
	default:
		return ".csv"
	}
}

// datasetName builds the output filename for one input under outDir.
func datasetName(outDir, input, format string) string {
	base := filepath.Base(filepath.Clean(input))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "dataset"
	}
	return filepath.Join(outDir, base+formatExt(format))
}

// writeRecords writes records to path in the given format, creating
// parent directories as needed.
func writeRecords(path, format string, records []model.QuestionRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create output directory %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}

	switch format {
	case "csv", "":
		err = qanta.WriteCSV(f, records)
	case "json":
		err = qanta.WriteJSON(f, records)
	case "jsonl":
		err = qanta.WriteJSONL(f, records)
	default:
		err = eris.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

// readRecords loads a dataset written by convert, selecting the decoder
// by extension.
func readRecords(path string) ([]model.QuestionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return qanta.ReadCSV(f)
	case ".json":
		return qanta.ReadJSON(f)
	default:
		return nil, eris.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}
