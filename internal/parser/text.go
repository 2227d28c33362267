package parser

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/model"
)

// Text parses plain-text packets: questions separated by blank lines
// or by numbered question starts.
type Text struct {
	opts options
}

// NewText creates a plain-text packet parser.
func NewText(opts ...Option) *Text {
	return &Text{opts: buildOptions(opts)}
}

// Parse groups lines into paragraphs at blank lines, then into blocks.
// A question-start line always opens a block; an unmarked paragraph
// only counts as a question when it carries an answer line, which
// keeps packet titles and editor credits out of the output.
func (t *Text) Parse(ctx context.Context, path string) ([]model.RawQuestionBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "text: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	packetID, roundID := packetIdentity(t.opts.tournament, stemOf(path))
	b := newBlockBuilder(packetID, roundID)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var para []string
	flushPara := func() {
		defer b.flush()
		if len(para) == 0 {
			return
		}
		lines := para
		para = nil

		hasAnswer := false
		for _, line := range lines {
			if answerLabelRe.MatchString(line) {
				hasAnswer = true
				break
			}
		}
		for _, line := range lines {
			switch {
			case isQuestionStart(line):
				b.start(line)
			case b.open:
				b.add(line)
			case hasAnswer:
				b.startPlain(line)
			}
		}
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "text: parse cancelled")
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flushPara()
			continue
		}
		para = append(para, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "text: read %s", path)
	}
	flushPara()

	return b.done(), nil
}
