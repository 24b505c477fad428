package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/lawrag/internal/domain"
)

const (
	docxBody = "word/document.xml"
	// wordNS is the WordprocessingML main namespace.
	wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// DocxParagraphs returns the text of every body paragraph of a DOCX file in document order.
// Tabs and line breaks inside a paragraph become spaces; empty paragraphs are kept.
func DocxParagraphs(r io.ReaderAt, size int64) ([]string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %w", domain.ErrUnsupportedFormat, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s missing", domain.ErrUnsupportedFormat, docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrExtraction, docxBody, err)
	}
	defer func() { _ = rc.Close() }()

	paragraphs, err := readParagraphs(xml.NewDecoder(rc))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, docxBody, err)
	}
	return paragraphs, nil
}

func readParagraphs(dec *xml.Decoder) ([]string, error) {
	var (
		out    []string
		cur    strings.Builder
		inPara bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				inText = inPara
			case "tab", "br", "cr":
				if inPara {
					cur.WriteByte(' ')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if inPara {
					out = append(out, cur.String())
				}
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
}
