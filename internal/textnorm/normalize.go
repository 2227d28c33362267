// Package textnorm canonicalizes raw question and answer text. All
// functions are total: any input string yields a normalized output.
package textnorm

import (
	"regexp"
	"strings"
)

// Mode selects which normalization rules apply.
type Mode string

const (
	// ModeAnswer strips answer labels and directive-bearing
	// parentheticals from an answer line.
	ModeAnswer Mode = "answer"
	// ModeQuestion maps typographic punctuation to ASCII and keeps
	// parentheticals intact.
	ModeQuestion Mode = "question"
)

var (
	answerLabelRe = regexp.MustCompile(`(?i)^\s*(?:answer|ans)\s*[:.]\s*`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	parenGroupRe  = regexp.MustCompile(`\(([^()]*)\)`)
	squareGroupRe = regexp.MustCompile(`\[([^\[\]]*)\]`)

	// directiveRe matches moderator-instruction content inside a
	// parenthetical. A group matching it is an instruction to strip,
	// not part of the name.
	directiveRe = regexp.MustCompile(`(?i)\b(?:accept|reject|prompt|pronounced|pron\.|read as|equivalents|underline)\b|\bor\b`)
)

// typographicReplacer maps smart quotes, dashes, and other typographic
// characters produced by word processors to plain ASCII.
var typographicReplacer = strings.NewReplacer(
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	" ", " ", // no-break space
)

// Normalize canonicalizes raw text under the given mode. It never
// fails; unknown modes behave like ModeQuestion.
func Normalize(raw string, mode Mode) string {
	s := typographicReplacer.Replace(raw)

	if mode == ModeAnswer {
		s = answerLabelRe.ReplaceAllString(s, "")
		s = stripDirectiveGroups(s)
	}

	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripDirectiveGroups removes matched ( ) and [ ] groups whose content
// carries directive keywords, keeping descriptive parentheticals that
// belong to the name itself. Groups revealed by an inner removal are
// handled on the next pass.
func stripDirectiveGroups(s string) string {
	for {
		next := parenGroupRe.ReplaceAllStringFunc(s, dropIfDirective)
		next = squareGroupRe.ReplaceAllStringFunc(next, dropIfDirective)
		if next == s {
			return s
		}
		s = next
	}
}

func dropIfDirective(group string) string {
	inner := group[1 : len(group)-1]
	if directiveRe.MatchString(inner) {
		return ""
	}
	return group
}
