package model

import (
	"strings"
	"time"
)

// CategoryLabel is a "Major:Minor" category string, or a configured
// default when no taxonomy rule matched.
type CategoryLabel string

// ResolutionSource tells where a canonical answer came from.
type ResolutionSource string

const (
	SourceCache      ResolutionSource = "cache"
	SourceRemote     ResolutionSource = "remote"
	SourceUnresolved ResolutionSource = "unresolved"
)

// Resolution is the outcome of canonicalizing one answer phrase.
// ArticleText is optional; absence is not an error.
type Resolution struct {
	Title       string           `json:"title"`
	ArticleText string           `json:"article_text,omitempty"`
	Source      ResolutionSource `json:"source"`
}

// Resolved reports whether the phrase mapped to a canonical title.
func (r Resolution) Resolved() bool {
	return r.Source != SourceUnresolved && r.Title != ""
}

// AnswerNeedsReview is the deterministic placeholder written when no
// answer could be extracted. Records carrying it always have
// NeedsReview set.
const AnswerNeedsReview = "[ANSWER_NEEDS_MANUAL_REVIEW]"

// SentenceJoiner joins sentence units into the flat dataset text field.
const SentenceJoiner = " ||| "

// QuestionRecord is the merged output for one question. Immutable after
// assembly; every field has a deterministic value even when a stage
// fell back to a default.
type QuestionRecord struct {
	QID              string         `json:"qid"`
	NumericID        int64          `json:"id"`
	PacketID         string         `json:"packet_id"`
	RoundID          string         `json:"round_id,omitempty"`
	QuestionNumber   int            `json:"question_number"`
	Fold             string         `json:"fold"`
	Answer           string         `json:"answer"`
	RawAnswer        string         `json:"answer_raw"`
	AlternateAnswers []string       `json:"alternate_answers,omitempty"`
	RejectedAnswers  []string       `json:"rejected_answers,omitempty"`
	Category         CategoryLabel  `json:"category"`
	Sentences        []SentenceUnit `json:"sentences"`
	Text             string         `json:"text"`
	WikiTitle        string         `json:"wikipedia_page,omitempty"`
	Resolved         bool           `json:"resolved"`
	NeedsReview      bool           `json:"needs_review"`
	Notes            []string       `json:"notes,omitempty"`
	Tournament       string         `json:"tournament,omitempty"`
	Year             int            `json:"year,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// JoinSentences renders units in order as the flat text field.
func JoinSentences(units []SentenceUnit) string {
	parts := make([]string, 0, len(units))
	for _, u := range units {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, SentenceJoiner)
}
