package model

import "fmt"

// RawQuestionBlock is one question as produced by a packet parser.
// Immutable once created; downstream stages read, never mutate.
type RawQuestionBlock struct {
	Text               string `json:"text"`
	AnswerLine         string `json:"answer_line"`
	PacketID           string `json:"packet_id"`
	RoundID            string `json:"round_id,omitempty"`
	QuestionNumber     int    `json:"question_number"`
	SourceCategoryHint string `json:"source_category_hint,omitempty"`
}

// QID returns the stable question identifier, e.g. "nsc2019_r4_Q07".
func (b RawQuestionBlock) QID() string {
	if b.RoundID != "" {
		return fmt.Sprintf("%s_%s_Q%02d", b.PacketID, b.RoundID, b.QuestionNumber)
	}
	return fmt.Sprintf("%s_Q%02d", b.PacketID, b.QuestionNumber)
}

// SentenceUnit is one segmented sentence of a question body.
// Index is 1-based and contiguous within a question.
type SentenceUnit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ExtractedAnswer is the parsed form of a raw answer line.
type ExtractedAnswer struct {
	Primary    string   `json:"primary"`
	Alternates []string `json:"alternates,omitempty"`
	Rejected   []string `json:"rejected,omitempty"`
}
