package extractor

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/harvali/docchat/internal/domain"
)

// tableMarker prefixes each serialized table row so tabular content stays
// distinguishable after chunking.
const tableMarker = "[TABLE]"

// extractWord reads a DOCX archive: non-blank paragraph text first, then
// every table serialized as pipe-delimited rows.
func extractWord(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w: %w", filepath.Base(path), err, domain.ErrExtractionFailed)
	}
	defer reader.Close()

	content, err := readArchiveFile(&reader.Reader, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("read docx body %s: %w: %w", filepath.Base(path), err, domain.ErrExtractionFailed)
	}

	var doc wordDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse docx body %s: %w: %w", filepath.Base(path), err, domain.ErrExtractionFailed)
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		if text := para.text(); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}

	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			cells := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				cells[i] = cell.text()
			}
			sb.WriteString(tableMarker)
			sb.WriteString(" ")
			sb.WriteString(strings.Join(cells, " | "))
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// readArchiveFile returns the contents of a named file inside a zip archive.
func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s missing from archive", name)
}

// wordDocument mirrors the parts of word/document.xml we read. Element names
// match local names, so the w: namespace prefix is irrelevant.
type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
		Tables     []wordTable     `xml:"tbl"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text []wordText `xml:"t"`
}

type wordText struct {
	Content string `xml:",chardata"`
}

type wordTable struct {
	Rows []wordTableRow `xml:"tr"`
}

type wordTableRow struct {
	Cells []wordTableCell `xml:"tc"`
}

type wordTableCell struct {
	Paragraphs []wordParagraph `xml:"p"`
}

func (p wordParagraph) text() string {
	var sb strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			sb.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (c wordTableCell) text() string {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		if text := p.text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
