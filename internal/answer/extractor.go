// Package answer derives primary, alternate, and rejected answer
// phrases from raw answer lines.
package answer

import (
	"regexp"
	"strings"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/textnorm"
)

type clauseKind int

const (
	kindAlternate clauseKind = iota
	kindRejected
)

var (
	editorTagRe = regexp.MustCompile(`<.*`)
	groupRe     = regexp.MustCompile(`\(([^()]*)\)|\[([^\[\]]*)\]`)

	// Order matters: longer directives must win over their prefixes
	// ("do not accept" before "accept").
	directiveRe = regexp.MustCompile(`(?i)\b(?:do\s+not\s+accept|don't\s+accept|also\s+accept|accept|prompt\s+(?:only\s+)?on|prompt|reject|or)\b`)

	phraseSplitRe = regexp.MustCompile(`[,;]`)
	spaceRunRe    = regexp.MustCompile(`\s+`)
)

// Config holds the injected synonym table. Keys are matched
// case-insensitively against the whole primary phrase; a miss leaves
// the phrase unchanged.
type Config struct {
	Synonyms map[string]string `yaml:"synonyms" mapstructure:"synonyms"`
}

// Extractor parses raw answer lines. It is pure: same line and config
// always produce the same ExtractedAnswer.
type Extractor struct {
	synonyms map[string]string
}

// New builds an Extractor with the given config.
func New(cfg Config) *Extractor {
	syn := make(map[string]string, len(cfg.Synonyms))
	for k, v := range cfg.Synonyms {
		syn[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Extractor{synonyms: syn}
}

// Extract parses an answer line into primary, alternate, and rejected
// phrases. When normalization leaves no primary phrase it returns the
// parsed alternates and rejects together with model.ErrEmptyAnswer;
// callers substitute model.AnswerNeedsReview.
func (e *Extractor) Extract(answerLine string) (model.ExtractedAnswer, error) {
	raw := editorTagRe.ReplaceAllString(answerLine, "")
	// Question-mode normalization maps typographic punctuation so
	// directive matching sees ASCII, and keeps the groups intact.
	raw = textnorm.Normalize(raw, textnorm.ModeQuestion)

	var out model.ExtractedAnswer

	// Directive-bearing parentheticals carry the alternates and
	// rejects; collect them before normalization strips the groups.
	for _, m := range groupRe.FindAllStringSubmatch(raw, -1) {
		inner := m[1]
		if inner == "" {
			inner = m[2]
		}
		e.parseClauses(inner, &out)
	}

	main := textnorm.Normalize(raw, textnorm.ModeAnswer)

	// Bare directives outside any parenthetical split the primary
	// phrase from the trailing clauses.
	if loc := directiveRe.FindStringIndex(main); loc != nil {
		e.parseClauses(main[loc[0]:], &out)
		main = main[:loc[0]]
	}

	primary := cleanPhrase(main)
	if rep, ok := e.synonyms[strings.ToLower(primary)]; ok {
		primary = rep
	}

	out.Alternates = dedupe(out.Alternates, primary)
	out.Rejected = dedupe(out.Rejected, primary)

	if primary == "" {
		return out, model.ErrEmptyAnswer
	}
	out.Primary = primary
	return out, nil
}

// parseClauses walks directive keywords in a clause and files each
// payload under the keyword's kind. A bare "or" continues the previous
// directive's kind, so "do not accept X or Y" rejects both.
func (e *Extractor) parseClauses(clause string, out *model.ExtractedAnswer) {
	matches := directiveRe.FindAllStringIndex(clause, -1)
	if len(matches) == 0 {
		return
	}

	kind := kindAlternate
	for i, m := range matches {
		keyword := strings.ToLower(spaceRunRe.ReplaceAllString(clause[m[0]:m[1]], " "))
		switch {
		case keyword == "or":
			// keep previous kind
		case strings.HasPrefix(keyword, "do not") || strings.HasPrefix(keyword, "don't") ||
			keyword == "reject" || strings.HasPrefix(keyword, "prompt"):
			kind = kindRejected
		default:
			kind = kindAlternate
		}

		end := len(clause)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		for _, p := range phraseSplitRe.Split(clause[m[1]:end], -1) {
			p = cleanPhrase(p)
			if p == "" {
				continue
			}
			switch kind {
			case kindAlternate:
				out.Alternates = append(out.Alternates, p)
			case kindRejected:
				out.Rejected = append(out.Rejected, p)
			}
		}
	}
}

func cleanPhrase(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " .\n\r")
}

func dedupe(phrases []string, primary string) []string {
	if len(phrases) == 0 {
		return nil
	}
	seen := map[string]struct{}{strings.ToLower(primary): {}}
	var out []string
	for _, p := range phrases {
		k := strings.ToLower(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
