package services

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"legal-docs-rag/internal/logger"
	"legal-docs-rag/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// ReadExcelManifest reads a spreadsheet listing source PDFs. linkColumn (a
// column letter, "G" in the canonical manifest) holds the download link;
// hyperlink targets are preferred over cell text. Every other column becomes
// document metadata keyed by its column letter. Rows without a usable URL are
// skipped, not fatal.
func ReadExcelManifest(filePath, linkColumn string) ([]models.DocumentSource, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open manifest %s: %v", ErrInput, filePath, err)
	}
	defer f.Close()

	linkCol, err := excelize.ColumnNameToNumber(linkColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid manifest link column %q: %v", ErrConfiguration, linkColumn, err)
	}

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read manifest sheet %s: %v", ErrInput, sheet, err)
	}

	var sources []models.DocumentSource
	for rowIdx, row := range rows {
		rowNum := rowIdx + 1

		cell, err := excelize.CoordinatesToCellName(linkCol, rowNum)
		if err != nil {
			continue
		}

		// Hyperlink target first, cell value as fallback
		pdfURL := ""
		if ok, target, err := f.GetCellHyperLink(sheet, cell); err == nil && ok {
			pdfURL = target
		}
		if pdfURL == "" && len(row) >= linkCol {
			pdfURL = strings.TrimSpace(row[linkCol-1])
		}
		if pdfURL == "" {
			logger.Debug("manifest row has no link, skipping", "row", rowNum)
			continue
		}
		if !strings.HasPrefix(pdfURL, "http://") && !strings.HasPrefix(pdfURL, "https://") {
			logger.Warn("manifest row has invalid URL, skipping", "row", rowNum, "url", pdfURL)
			continue
		}

		metadata := make(map[string]string)
		for colIdx, value := range row {
			if colIdx+1 == linkCol {
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			letter, err := excelize.ColumnNumberToName(colIdx + 1)
			if err != nil {
				continue
			}
			metadata[letter] = value
		}

		sources = append(sources, models.DocumentSource{
			URL:      pdfURL,
			Filename: filenameFromURL(pdfURL, rowNum),
			Metadata: metadata,
		})
	}

	logger.Info("read manifest", "path", filePath, "sources", len(sources))
	return sources, nil
}

// ReadHTMLManifest extracts PDF links from an HTML page, resolving relative
// hrefs against baseURL. The anchor text travels as metadata.
func ReadHTMLManifest(r io.Reader, baseURL string) ([]models.DocumentSource, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse HTML manifest: %v", ErrInput, err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL %q: %v", ErrInput, baseURL, err)
	}

	var sources []models.DocumentSource
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if !strings.HasSuffix(strings.ToLower(resolved.Path), ".pdf") {
			return
		}
		link := resolved.String()
		if seen[link] {
			return
		}
		seen[link] = true

		metadata := map[string]string{}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			metadata["link_text"] = text
		}

		sources = append(sources, models.DocumentSource{
			URL:      link,
			Filename: filenameFromURL(link, len(sources)+1),
			Metadata: metadata,
		})
	})

	return sources, nil
}

// filenameFromURL derives a local filename from the URL path, guaranteeing a
// .pdf extension and a non-empty name.
func filenameFromURL(rawURL string, ordinal int) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("document_%d", ordinal)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
