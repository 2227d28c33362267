// Package parser turns tournament packet files into raw question
// blocks. One parser per input format; selection is by file extension.
package parser

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/model"
)

// Parser reads one packet file into raw question blocks, in document
// order. Blocks are immutable once returned.
type Parser interface {
	Parse(ctx context.Context, path string) ([]model.RawQuestionBlock, error)
}

// Option configures a parser.
type Option func(*options)

type options struct {
	tournament string
}

// WithTournament prefixes packet identifiers with a tournament name,
// e.g. "2025_PACE_NSC". Round-named files then keep the tournament as
// the packet id and carry the round separately.
func WithTournament(name string) Option {
	return func(o *options) { o.tournament = name }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ForPath returns the parser matching the file extension. Unknown
// extensions are an input error.
func ForPath(path string, opts ...Option) (Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return NewDocx(opts...), nil
	case ".txt", ".text":
		return NewText(opts...), nil
	case ".json":
		return NewJSON(opts...), nil
	default:
		return nil, eris.Errorf("parser: unsupported packet format %q", filepath.Ext(path))
	}
}

// ParseDir parses every packet file in a directory, in name order.
// Files with unknown extensions and editor lock files are skipped.
func ParseDir(ctx context.Context, dir string, opts ...Option) ([]model.RawQuestionBlock, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "parser: read packet directory")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var blocks []model.RawQuestionBlock
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		p, err := ForPath(name, opts...)
		if err != nil {
			zap.L().Debug("skipping non-packet file", zap.String("file", name))
			continue
		}
		if err := ctx.Err(); err != nil {
			return blocks, eris.Wrap(err, "parser: scan cancelled")
		}
		parsed, err := p.Parse(ctx, filepath.Join(dir, name))
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, parsed...)
	}
	return blocks, nil
}
