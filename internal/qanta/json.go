package qanta

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/model"
)

// WriteJSON writes records as one indented JSON array with full
// metadata, the archive interchange form.
func WriteJSON(w io.Writer, records []model.QuestionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(records), "qanta: write json")
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(w io.Writer, records []model.QuestionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return eris.Wrapf(err, "qanta: write jsonl %s", rec.QID)
		}
	}
	return nil
}

// ReadJSON reads an archive JSON array of records.
func ReadJSON(r io.Reader) ([]model.QuestionRecord, error) {
	var records []model.QuestionRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "qanta: read json")
	}
	return records, nil
}
