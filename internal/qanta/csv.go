package qanta

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/model"
)

// CSVHeader is the QANTA dataset column set, in order.
var CSVHeader = []string{"Question ID", "Fold", "Answer", "Category", "Text"}

// WriteCSV writes records as QANTA CSV. The Text column joins sentence
// units with the ||| separator.
func WriteCSV(w io.Writer, records []model.QuestionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return eris.Wrap(err, "qanta: write csv header")
	}
	for _, rec := range records {
		row := []string{rec.QID, rec.Fold, rec.Answer, string(rec.Category), rec.Text}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "qanta: write csv row %s", rec.QID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "qanta: flush csv")
}

// ReadCSV reads a QANTA CSV back into records. Only the five dataset
// columns are recoverable; sentence units are rebuilt from the joined
// text and the numeric id from the question id.
func ReadCSV(r io.Reader) ([]model.QuestionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "qanta: read csv header")
	}
	cols, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var records []model.QuestionRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "qanta: read csv row")
		}
		rec := model.QuestionRecord{
			QID:      field(row, cols["question id"]),
			Fold:     field(row, cols["fold"]),
			Answer:   field(row, cols["answer"]),
			Category: model.CategoryLabel(field(row, cols["category"])),
			Text:     field(row, cols["text"]),
		}
		rec.NumericID = StableID(rec.QID)
		rec.Sentences = splitSentences(rec.Text)
		rec.NeedsReview = rec.Answer == model.AnswerNeedsReview
		records = append(records, rec)
	}
	return records, nil
}

// MergeCSV merges QANTA CSVs into one, deduplicating by question id
// with the later input winning. Row order follows first appearance.
// Returns the merged record count.
func MergeCSV(w io.Writer, inputs ...io.Reader) (int, error) {
	var order []string
	byQID := make(map[string]model.QuestionRecord)

	for i, in := range inputs {
		records, err := ReadCSV(in)
		if err != nil {
			return 0, eris.Wrapf(err, "qanta: merge input %d", i+1)
		}
		for _, rec := range records {
			if _, seen := byQID[rec.QID]; !seen {
				order = append(order, rec.QID)
			}
			byQID[rec.QID] = rec
		}
	}

	merged := make([]model.QuestionRecord, 0, len(order))
	for _, qid := range order {
		merged = append(merged, byQID[qid])
	}
	if err := WriteCSV(w, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// headerIndex maps normalized column names to positions. Question_ID
// and Question ID both appear in archive files.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
		cols[key] = i
	}
	for _, want := range []string{"question id", "fold", "answer", "category", "text"} {
		if _, ok := cols[want]; !ok {
			return nil, eris.Errorf("qanta: csv missing column %q", want)
		}
	}
	return cols, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func splitSentences(text string) []model.SentenceUnit {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, model.SentenceJoiner)
	units := make([]model.SentenceUnit, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		units = append(units, model.SentenceUnit{Index: len(units) + 1, Text: p})
	}
	return units
}
