package parser

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/model"
)

// JSON parses packet archives: a JSON array of question objects. Both
// the {text, answer, number, category} shape and the converter output
// shape with raw_text/question_num field names are accepted.
type JSON struct {
	opts options
}

// NewJSON creates a JSON packet parser.
func NewJSON(opts ...Option) *JSON {
	return &JSON{opts: buildOptions(opts)}
}

type jsonQuestion struct {
	Text        string `json:"text"`
	RawText     string `json:"raw_text"`
	Answer      string `json:"answer"`
	Number      int    `json:"number"`
	QuestionNum int    `json:"question_num"`
	Category    string `json:"category"`
}

// Parse decodes the array and maps each element to a question block in
// array order.
func (j *JSON) Parse(ctx context.Context, path string) ([]model.RawQuestionBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "json: open %s", path)
	}

	var questions []jsonQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, eris.Wrapf(err, "json: decode %s", path)
	}

	packetID, roundID := packetIdentity(j.opts.tournament, stemOf(path))
	blocks := make([]model.RawQuestionBlock, 0, len(questions))
	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "json: parse cancelled")
		}
		text := strings.TrimSpace(q.Text)
		if text == "" {
			text = strings.TrimSpace(q.RawText)
		}
		if text == "" && q.Answer == "" {
			continue
		}

		answerLine := ""
		for _, line := range strings.Split(text, "\n") {
			if answerLabelRe.MatchString(line) {
				answerLine = strings.TrimSpace(line)
				break
			}
		}
		if answerLine == "" && q.Answer != "" {
			answerLine = "ANSWER: " + strings.TrimSpace(q.Answer)
		}

		number := q.Number
		if number == 0 {
			number = q.QuestionNum
		}
		if number == 0 {
			number = i + 1
		}

		hint := strings.TrimSpace(q.Category)
		if hint == "" {
			hint = categoryTagRe.FindString(text)
		}

		blocks = append(blocks, model.RawQuestionBlock{
			Text:               text,
			AnswerLine:         answerLine,
			PacketID:           packetID,
			RoundID:            roundID,
			QuestionNumber:     number,
			SourceCategoryHint: hint,
		})
	}
	return blocks, nil
}
