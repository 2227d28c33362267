// Package classify infers coarse/fine category labels from packet
// metadata and answer text via an ordered keyword taxonomy.
package classify

import (
	"regexp"
	"strings"

	"github.com/openqb/qantagen/internal/model"
)

// categoryTagRe matches editor tags like "<Doe, Fine Arts - Jazz>"
// and captures the category portion.
var categoryTagRe = regexp.MustCompile(`<[^,<>]+,\s*([^<>]+)>`)

// Rule pairs a keyword set with the label it assigns. Keywords match
// as case-insensitive substrings.
type Rule struct {
	Label    string   `yaml:"label" mapstructure:"label"`
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
}

// Config is the injected, immutable taxonomy.
type Config struct {
	Rules   []Rule `yaml:"rules" mapstructure:"rules"`
	Default string `yaml:"default" mapstructure:"default"`
}

// DefaultLabel is used when no rule matches and none is configured.
const DefaultLabel = "Miscellaneous"

// DefaultRules returns the built-in taxonomy.
func DefaultRules() []Rule {
	return []Rule{
		{Label: "History", Keywords: []string{"war", "battle", "treaty", "king", "emperor", "general", "dynasty", "revolution"}},
		{Label: "Science:Chemistry", Keywords: []string{"element", "compound", "reaction", "molecule", "acid"}},
		{Label: "Science:Physics", Keywords: []string{"physics", "quantum", "relativity", "force", "energy"}},
		{Label: "Science:Biology", Keywords: []string{"species", "cell", "protein", "organism", "enzyme"}},
		{Label: "Science:Astronomy", Keywords: []string{"planet", "star", "galaxy", "cosmos", "space"}},
		{Label: "Science:Math", Keywords: []string{"theorem", "integral", "polynomial", "conjecture"}},
		{Label: "Fine_Arts:Literature", Keywords: []string{"novel", "poem", "author", "playwright", "literature"}},
		{Label: "Fine_Arts:Music", Keywords: []string{"composer", "symphony", "concerto", "opera", "musician"}},
		{Label: "Fine_Arts:Art", Keywords: []string{"painting", "sculpture", "artist", "gallery"}},
		{Label: "Religion_Mythology", Keywords: []string{"god", "goddess", "myth", "deity", "prophet"}},
		{Label: "Geography", Keywords: []string{"country", "city", "mountain", "river", "geography"}},
		{Label: "Social_Science", Keywords: []string{"economist", "psychologist", "philosopher", "sociologist"}},
	}
}

type compiledRule struct {
	label    model.CategoryLabel
	keywords []string
}

// Classifier assigns category labels. It is a pure function of its
// inputs and the config it was built with.
type Classifier struct {
	rules        []compiledRule
	known        map[string]model.CategoryLabel
	defaultLabel model.CategoryLabel
}

// New builds a Classifier, falling back to the default taxonomy when
// the config carries no rules.
func New(cfg Config) *Classifier {
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled := make([]compiledRule, 0, len(rules))
	known := make(map[string]model.CategoryLabel, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kws = append(kws, k)
			}
		}
		label := model.CategoryLabel(r.Label)
		compiled = append(compiled, compiledRule{label: label, keywords: kws})
		known[strings.ToLower(r.Label)] = label
	}
	def := cfg.Default
	if def == "" {
		def = DefaultLabel
	}
	return &Classifier{rules: compiled, known: known, defaultLabel: model.CategoryLabel(def)}
}

// Classify scans the metadata hint, then the answer phrase, then the
// question text; the first matching rule wins. An editor tag in the
// hint or text maps directly to its embedded category.
func (c *Classifier) Classify(hint, answerPhrase, questionText string) model.CategoryLabel {
	if label, ok := parseTag(hint); ok {
		return label
	}
	if label, ok := c.bareCategory(hint); ok {
		return label
	}
	if label, ok := parseTag(questionText); ok {
		return label
	}

	for _, field := range []string{hint, answerPhrase, questionText} {
		if field == "" {
			continue
		}
		lower := strings.ToLower(field)
		for _, r := range c.rules {
			for _, kw := range r.keywords {
				if strings.Contains(lower, kw) {
					return r.label
				}
			}
		}
	}
	return c.defaultLabel
}

// bareCategory maps a hint that IS a category, as packet JSON category
// fields are. Two-level "Major - Minor" or "Major:Minor" forms map
// verbatim like tag payloads; a single-level hint maps only when it
// names a configured label, so prose hints still go through the
// keyword rules.
func (c *Classifier) bareCategory(hint string) (model.CategoryLabel, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" || len(hint) > 64 {
		return "", false
	}
	if strings.ContainsAny(hint, "-:") {
		return labelFromCategory(hint)
	}
	label, ok := c.known[strings.ToLower(strings.ReplaceAll(hint, " ", "_"))]
	return label, ok
}

// parseTag extracts "Major:Minor" from an editor tag such as
// "<Doe, Fine Arts - Jazz>"; spaces inside a level become underscores.
func parseTag(s string) (model.CategoryLabel, bool) {
	if s == "" {
		return "", false
	}
	m := categoryTagRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return labelFromCategory(m[1])
}

// labelFromCategory converts "Fine Arts - Jazz" into "Fine_Arts:Jazz",
// keeping at most two levels.
func labelFromCategory(cat string) (model.CategoryLabel, bool) {
	parts := strings.FieldsFunc(cat, func(r rune) bool { return r == '-' || r == ':' })
	levels := make([]string, 0, 2)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		levels = append(levels, strings.ReplaceAll(p, " ", "_"))
		if len(levels) == 2 {
			break
		}
	}
	if len(levels) == 0 {
		return "", false
	}
	return model.CategoryLabel(strings.Join(levels, ":")), true
}
