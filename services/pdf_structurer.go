package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"legal-docs-rag/models"

	"github.com/ledongthuc/pdf"
)

// PDFStructurer implements the Structurer capability on top of the pure-Go PDF
// reader. It walks pages row by row and infers the section hierarchy from
// heading heuristics tuned for legal documents: decimal-numbered headings
// ("2.", "2.1"), article/chapter markers and all-caps title lines.
type PDFStructurer struct {
	numberedRe *regexp.Regexp
	articleRe  *regexp.Regexp
}

// NewPDFStructurer creates a PDF structurer.
func NewPDFStructurer() *PDFStructurer {
	return &PDFStructurer{
		numberedRe: regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s+(\S.*)$`),
		articleRe:  regexp.MustCompile(`(?i)^(art(?:\.|icle|igo)?\s*\d+|§\s*\d+|cap[íi]tulo\s+\S+|t[íi]tulo\s+\S+|section\s+\d+)`),
	}
}

// Structure parses the PDF and returns its sections in document order. Corrupt
// or empty input yields an input error, never a partial result.
func (ps *PDFStructurer) Structure(ctx context.Context, data []byte) (*StructuredDocument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInput)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrInput, err)
	}

	doc := &StructuredDocument{Pages: reader.NumPage()}
	builder := ps.newSectionBuilder()

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: structuring cancelled: %v", ErrServiceUnavailable, err)
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// A single unreadable page degrades the result, it does not
			// abort the document.
			continue
		}

		for _, row := range rows {
			var line strings.Builder
			for _, text := range row.Content {
				line.WriteString(text.S)
			}
			builder.addLine(line.String(), pageNum)
		}
	}
	doc.Sections = builder.finish()

	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("%w: no text content in PDF", ErrInput)
	}

	return doc, nil
}

// sectionBuilder accumulates lines into sections, maintaining the heading
// path stack. Heading lines close the current section and adjust the stack:
// a heading at level n truncates the path to n-1 entries and pushes itself,
// so paths only ever move forward in document order.
type sectionBuilder struct {
	ps *PDFStructurer

	path      []string
	body      strings.Builder
	startPage int
	lastPage  int
	lastLevel int
	sections  []Section
}

func (ps *PDFStructurer) newSectionBuilder() *sectionBuilder {
	return &sectionBuilder{ps: ps, startPage: 1, lastPage: 1}
}

// addLine routes one text line into the current section or, for headings,
// starts a new one.
func (b *sectionBuilder) addLine(line string, page int) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	if level, title, ok := b.ps.detectHeading(trimmed, b.lastLevel); ok {
		b.flush()
		if level <= len(b.path) {
			b.path = b.path[:level-1]
		}
		b.path = append(b.path, title)
		b.lastLevel = level
		b.startPage = page
		b.lastPage = page
		return
	}

	if b.body.Len() > 0 {
		b.body.WriteString("\n")
	} else {
		b.startPage = page
	}
	b.body.WriteString(trimmed)
	b.lastPage = page
}

func (b *sectionBuilder) flush() {
	text := strings.TrimSpace(b.body.String())
	if text != "" {
		b.sections = append(b.sections, Section{
			Path:  append([]string(nil), b.path...),
			Text:  text,
			Pages: models.PageSpan{First: b.startPage, Last: b.lastPage},
		})
	}
	b.body.Reset()
}

// finish closes the trailing section and returns all sections in order.
func (b *sectionBuilder) finish() []Section {
	b.flush()
	return b.sections
}

// detectHeading classifies a line as a heading and returns its hierarchy level
// (1-based) and title.
func (ps *PDFStructurer) detectHeading(line string, lastLevel int) (int, string, bool) {
	if m := ps.numberedRe.FindStringSubmatch(line); m != nil && len(m[2]) <= 120 {
		level := strings.Count(m[1], ".") + 1
		return level, line, true
	}

	if ps.articleRe.MatchString(line) && len(line) <= 120 {
		// Article markers nest one below the last structural heading.
		level := lastLevel + 1
		if level < 1 {
			level = 1
		}
		return level, line, true
	}

	if isTitleCaps(line) {
		return 1, line, true
	}

	return 0, "", false
}

// isTitleCaps reports whether the line looks like an all-caps title.
func isTitleCaps(line string) bool {
	if len(line) < 4 || len(line) > 80 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if (r >= 'A' && r <= 'Z') || r == 'Á' || r == 'É' || r == 'Í' || r == 'Ó' || r == 'Ú' || r == 'Ç' || r == 'Ã' || r == 'Õ' {
			hasLetter = true
		}
	}
	return hasLetter
}
