package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/model"
)

// Docx parses Word packet documents. Only paragraph text is read;
// styling, tables, and embedded media are ignored.
type Docx struct {
	opts options
}

// NewDocx creates a Word packet parser.
func NewDocx(opts ...Option) *Docx {
	return &Docx{opts: buildOptions(opts)}
}

// Parse reads word/document.xml out of the archive and groups its
// paragraphs into question blocks.
func (d *Docx) Parse(ctx context.Context, path string) ([]model.RawQuestionBlock, error) {
	paras, err := docxParagraphs(path)
	if err != nil {
		return nil, err
	}

	packetID, roundID := packetIdentity(d.opts.tournament, stemOf(path))
	b := newBlockBuilder(packetID, roundID)
	for _, para := range paras {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "docx: parse cancelled")
		}
		// A soft line break inside a paragraph separates lines the
		// same way a new paragraph does.
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if isQuestionStart(line) {
				b.start(line)
			} else {
				b.add(line)
			}
		}
	}
	return b.done(), nil
}

// docxParagraphs extracts the plain text of every paragraph in a .docx
// file, in document order.
func docxParagraphs(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, eris.Wrapf(err, "docx: open %s", path)
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrap(err, "docx: open document.xml")
		}
		defer rc.Close() //nolint:errcheck
		return decodeParagraphs(rc)
	}
	return nil, eris.Errorf("docx: %s has no word/document.xml", path)
}

// decodeParagraphs walks the WordprocessingML token stream, collecting
// run text (w:t) per paragraph (w:p) and mapping breaks and tabs to
// whitespace.
func decodeParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []string
		cur    strings.Builder
		inPara bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "docx: decode document.xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				if !inPara {
					continue
				}
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, eris.Wrap(err, "docx: decode run text")
				}
				cur.WriteString(text)
			case "br", "cr":
				if inPara {
					cur.WriteByte('\n')
				}
			case "tab":
				if inPara {
					cur.WriteByte(' ')
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inPara {
				inPara = false
				if s := strings.TrimSpace(cur.String()); s != "" {
					paras = append(paras, cur.String())
				}
			}
		}
	}
	return paras, nil
}
