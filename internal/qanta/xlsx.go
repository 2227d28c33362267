package qanta

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/openqb/qantagen/internal/model"
)

var reviewHeader = []string{
	"Question ID", "Packet", "Question #", "Answer", "Raw Answer Line",
	"Category", "Wiki Title", "Resolved", "Notes", "Text",
}

// WriteReviewXLSX writes every record flagged for manual review to a
// workbook, one row per question. Returns the row count.
func WriteReviewXLSX(path string, records []model.QuestionRecord) (int, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("review")
	if err != nil {
		return 0, eris.Wrap(err, "qanta: add review sheet")
	}

	row := sheet.AddRow()
	for _, name := range reviewHeader {
		row.AddCell().Value = name
	}

	count := 0
	for _, rec := range records {
		if !rec.NeedsReview {
			continue
		}
		count++
		row := sheet.AddRow()
		for _, v := range []string{
			rec.QID,
			rec.PacketID,
			strconv.Itoa(rec.QuestionNumber),
			rec.Answer,
			rec.RawAnswer,
			string(rec.Category),
			rec.WikiTitle,
			strconv.FormatBool(rec.Resolved),
			strings.Join(rec.Notes, "; "),
			rec.Text,
		} {
			row.AddCell().Value = v
		}
	}

	if err := file.Save(path); err != nil {
		return 0, eris.Wrapf(err, "qanta: save review workbook %s", path)
	}
	return count, nil
}
