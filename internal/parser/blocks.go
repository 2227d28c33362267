package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openqb/qantagen/internal/model"
)

var (
	numberedStartRe = regexp.MustCompile(`^\d+[.)]\s+`)
	headerStartRe   = regexp.MustCompile(`(?i)^(?:tossups?|bonus(?:es)?)\b[\s:#.)-]*\d*[\s:.)-]*`)
	answerLabelRe   = regexp.MustCompile(`(?i)^\s*(?:answer|ans)\s*:`)
	categoryTagRe   = regexp.MustCompile(`<[^,<>]+,\s*[^<>]+>`)
	roundStemRe     = regexp.MustCompile(`(?i)^round[ _-]*0*(\d+)$`)
)

// isQuestionStart reports whether a line begins a new question: a
// leading number like "1." or "12)", or a tossup/bonus header.
func isQuestionStart(line string) bool {
	return numberedStartRe.MatchString(line) || headerStartRe.MatchString(line)
}

// stripStartMarker removes the question-number prefix or header from
// the first line of a block. The marker is bookkeeping, not content;
// question numbers are assigned by position.
func stripStartMarker(line string) string {
	if m := numberedStartRe.FindString(line); m != "" {
		return strings.TrimSpace(line[len(m):])
	}
	if m := headerStartRe.FindString(line); m != "" {
		return strings.TrimSpace(line[len(m):])
	}
	return line
}

// packetIdentity derives packet and round identifiers from a file
// stem. A round-named file under a tournament keeps the tournament as
// the packet id; otherwise the stem itself is the packet id.
func packetIdentity(tournament, stem string) (packetID, roundID string) {
	stem = strings.TrimSpace(stem)
	if tournament != "" {
		if m := roundStemRe.FindStringSubmatch(stem); m != nil {
			return sanitizeID(tournament), "r" + m[1]
		}
		return sanitizeID(tournament + "_" + stem), ""
	}
	return sanitizeID(stem), ""
}

func sanitizeID(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// blockBuilder accumulates lines into question blocks. Lines before
// the first question start are packet front matter and are dropped.
type blockBuilder struct {
	packetID string
	roundID  string
	lines    []string
	open     bool
	blocks   []model.RawQuestionBlock
}

func newBlockBuilder(packetID, roundID string) *blockBuilder {
	return &blockBuilder{packetID: packetID, roundID: roundID}
}

// start flushes any open block and begins a new one with the marker
// stripped from the first line.
func (b *blockBuilder) start(line string) {
	b.flush()
	b.open = true
	if rest := stripStartMarker(line); rest != "" {
		b.lines = append(b.lines, rest)
	}
}

// startPlain begins a block from a line with no start marker.
func (b *blockBuilder) startPlain(line string) {
	b.flush()
	b.open = true
	b.lines = append(b.lines, line)
}

// add appends a continuation line to the open block, if any.
func (b *blockBuilder) add(line string) {
	if !b.open {
		return
	}
	b.lines = append(b.lines, line)
}

// flush finalizes the open block.
func (b *blockBuilder) flush() {
	if !b.open {
		return
	}
	b.open = false
	lines := b.lines
	b.lines = nil

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return
	}

	var answerLine string
	for _, line := range lines {
		if answerLabelRe.MatchString(line) {
			answerLine = strings.TrimSpace(line)
			break
		}
	}

	b.blocks = append(b.blocks, model.RawQuestionBlock{
		Text:               text,
		AnswerLine:         answerLine,
		PacketID:           b.packetID,
		RoundID:            b.roundID,
		QuestionNumber:     len(b.blocks) + 1,
		SourceCategoryHint: categoryTagRe.FindString(text),
	})
}

// done flushes and returns the accumulated blocks.
func (b *blockBuilder) done() []model.RawQuestionBlock {
	b.flush()
	return b.blocks
}
