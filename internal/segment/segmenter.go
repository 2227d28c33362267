// Package segment splits quizbowl question bodies into ordered
// sentence units, honoring the power mark and abbreviation guards.
package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/openqb/qantagen/internal/model"
)

// PowerMark is the in-text separator denoting the early-buzz point.
// It is always a sentence boundary, with or without punctuation.
const PowerMark = "|||"

var (
	answerLineRe = regexp.MustCompile(`(?i)\b(?:ANSWER|ANS)\s*:\s*[^\n]*`)
	giveawayRe   = regexp.MustCompile(`(?i)\s*(?:For\s+\d+\s+points|FTP)[,.]?\s+(?:name\s+)?[^.!?]*[.!?]?\s*$`)
	powerMarkRe  = regexp.MustCompile(`\s*\|\|\|\s*`)
)

// Config holds injected segmentation settings. Abbreviations are
// stored lowercase without the trailing period ("dr", "ph.d", "u.s").
type Config struct {
	Abbreviations []string `yaml:"abbreviations" mapstructure:"abbreviations"`
	StripGiveaway bool     `yaml:"strip_giveaway" mapstructure:"strip_giveaway"`
}

// DefaultAbbreviations returns the built-in abbreviation guard set.
func DefaultAbbreviations() []string {
	return []string{
		"mr", "mrs", "ms", "dr", "prof", "st", "jr", "sr",
		"ph.d", "b.a", "m.a", "b.s", "m.s",
		"inc", "ltd", "co", "corp", "assoc",
		"et al", "etc", "e.g", "i.e", "vs", "v.s",
		"no", "vol", "ed", "eds",
		"a.m", "p.m", "a.d", "b.c", "u.s",
	}
}

// Segmenter splits question bodies into sentence units. It carries no
// mutable state; segmenting the same input twice yields the same
// output.
type Segmenter struct {
	abbrevs       map[string]struct{}
	stripGiveaway bool
}

// New builds a Segmenter from config, falling back to the default
// abbreviation set when none is configured.
func New(cfg Config) *Segmenter {
	abbrevs := cfg.Abbreviations
	if len(abbrevs) == 0 {
		abbrevs = DefaultAbbreviations()
	}
	set := make(map[string]struct{}, len(abbrevs))
	for _, a := range abbrevs {
		set[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(a), "."))] = struct{}{}
	}
	return &Segmenter{abbrevs: set, stripGiveaway: cfg.StripGiveaway}
}

// StripAnswerLine removes the answer line from a question block and
// returns the remaining body, the removed line, and whether one was
// found.
func (s *Segmenter) StripAnswerLine(text string) (body, answerLine string, found bool) {
	loc := answerLineRe.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), "", false
	}
	answerLine = strings.TrimSpace(text[loc[0]:loc[1]])
	body = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return body, answerLine, true
}

// Segment splits a question block into 1-indexed sentence units. The
// answer line is stripped first and never appears in any unit. When no
// answer line is present, Segment still returns the full segmentation
// together with model.ErrMissingAnswerLine so callers can flag the
// question for review.
func (s *Segmenter) Segment(text string) ([]model.SentenceUnit, error) {
	body, _, found := s.StripAnswerLine(text)

	if s.stripGiveaway {
		body = giveawayRe.ReplaceAllString(body, "")
	}

	var candidates []string
	for _, chunk := range powerMarkRe.Split(body, -1) {
		candidates = append(candidates, s.splitSentences(chunk)...)
	}

	units := assemble(candidates)

	if !found {
		return units, model.ErrMissingAnswerLine
	}
	return units, nil
}

// splitSentences scans a chunk for terminal punctuation, guarding
// abbreviations and requiring a following capital or quote. Go's
// regexp has no lookbehind, so this is a rune scanner rather than the
// split-on-pattern approach.
func (s *Segmenter) splitSentences(text string) []string {
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)

	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '?' && r != '!' {
			continue
		}

		// Consume a terminal cluster ("..." or "?!") as one boundary.
		end := i
		for end+1 < len(runes) && isTerminal(runes[end+1]) {
			end++
		}

		if r == '.' && end == i && s.isAbbreviation(runes, i) {
			continue
		}

		// A boundary needs whitespace then a capital letter or an
		// opening quote; a lowercase continuation is not a boundary.
		next := end + 1
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next == end+1 && next < len(runes) {
			i = end
			continue
		}
		if next < len(runes) && !unicode.IsUpper(runes[next]) && runes[next] != '"' {
			i = end
			continue
		}

		out = append(out, string(runes[start:end+1]))
		start = next
		i = next - 1
	}

	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// isAbbreviation reports whether the period at index i terminates a
// configured abbreviation or a single-capital initial.
func (s *Segmenter) isAbbreviation(runes []rune, i int) bool {
	tokenStart := i
	for tokenStart > 0 && (unicode.IsLetter(runes[tokenStart-1]) || runes[tokenStart-1] == '.') {
		tokenStart--
	}
	token := strings.ToLower(string(runes[tokenStart:i]))
	if token == "" {
		return false
	}

	// Single-capital initials ("W. E. B. Du Bois").
	if i-tokenStart == 1 && unicode.IsUpper(runes[tokenStart]) {
		return true
	}

	if _, ok := s.abbrevs[token]; ok {
		return true
	}

	// Two-word abbreviations such as "et al".
	if prev := precedingWord(runes, tokenStart); prev != "" {
		if _, ok := s.abbrevs[prev+" "+token]; ok {
			return true
		}
	}
	return false
}

func precedingWord(runes []rune, tokenStart int) string {
	j := tokenStart
	for j > 0 && unicode.IsSpace(runes[j-1]) {
		j--
	}
	end := j
	for j > 0 && unicode.IsLetter(runes[j-1]) {
		j--
	}
	if j == end {
		return ""
	}
	return strings.ToLower(string(runes[j:end]))
}

// assemble trims candidates, merges fragments with no word content
// into the preceding unit, and numbers the result 1..n.
func assemble(candidates []string) []model.SentenceUnit {
	var texts []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !hasWordContent(c) && len(texts) > 0 {
			texts[len(texts)-1] += c
			continue
		}
		if !hasWordContent(c) {
			continue
		}
		texts = append(texts, c)
	}

	units := make([]model.SentenceUnit, 0, len(texts))
	for i, t := range texts {
		units = append(units, model.SentenceUnit{Index: i + 1, Text: t})
	}
	return units
}

func hasWordContent(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func isTerminal(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}
