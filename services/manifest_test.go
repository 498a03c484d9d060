package services

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTestManifest(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	// Row 1: hyperlink in the link column plus metadata columns.
	f.SetCellValue(sheet, "A1", "Lei 8.666")
	f.SetCellValue(sheet, "B1", "1993")
	f.SetCellValue(sheet, "G1", "ver documento")
	if err := f.SetCellHyperLink(sheet, "G1", "https://example.com/docs/lei_8666.pdf", "External"); err != nil {
		t.Fatalf("failed to set hyperlink: %v", err)
	}

	// Row 2: plain URL as cell text, no hyperlink.
	f.SetCellValue(sheet, "A2", "Decreto 10.024")
	f.SetCellValue(sheet, "G2", "https://example.com/docs/decreto_10024.pdf")

	// Row 3: no link at all; must be skipped.
	f.SetCellValue(sheet, "A3", "Linha sem link")

	// Row 4: non-http value in the link column; must be skipped.
	f.SetCellValue(sheet, "G4", "ftp://example.com/old.pdf")

	path := filepath.Join(t.TempDir(), "manifest.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save manifest: %v", err)
	}
	return path
}

func TestReadExcelManifest(t *testing.T) {
	path := writeTestManifest(t)

	sources, err := ReadExcelManifest(path, "G")
	if err != nil {
		t.Fatalf("manifest read failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	if sources[0].URL != "https://example.com/docs/lei_8666.pdf" {
		t.Errorf("hyperlink target not used: %q", sources[0].URL)
	}
	if sources[0].Filename != "lei_8666.pdf" {
		t.Errorf("unexpected filename: %q", sources[0].Filename)
	}
	if sources[0].Metadata["A"] != "Lei 8.666" || sources[0].Metadata["B"] != "1993" {
		t.Errorf("metadata columns not captured: %v", sources[0].Metadata)
	}

	if sources[1].URL != "https://example.com/docs/decreto_10024.pdf" {
		t.Errorf("cell text URL not used: %q", sources[1].URL)
	}
}

func TestReadExcelManifestInvalidColumn(t *testing.T) {
	path := writeTestManifest(t)
	if _, err := ReadExcelManifest(path, "7"); err == nil {
		t.Fatal("expected error for invalid column letter")
	}
}

func TestReadExcelManifestMissingFile(t *testing.T) {
	if _, err := ReadExcelManifest(filepath.Join(t.TempDir(), "missing.xlsx"), "G"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestReadHTMLManifest(t *testing.T) {
	page := `<html><body>
		<a href="/docs/lei_8666.pdf">Lei 8.666</a>
		<a href="https://other.example.org/decreto.pdf">Decreto</a>
		<a href="/docs/lei_8666.pdf">duplicate link</a>
		<a href="/about.html">not a pdf</a>
		<a href="/docs/portaria.PDF">Portaria</a>
	</body></html>`

	sources, err := ReadHTMLManifest(strings.NewReader(page), "https://example.com/index.html")
	if err != nil {
		t.Fatalf("HTML manifest read failed: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}

	if sources[0].URL != "https://example.com/docs/lei_8666.pdf" {
		t.Errorf("relative href not resolved: %q", sources[0].URL)
	}
	if sources[0].Metadata["link_text"] != "Lei 8.666" {
		t.Errorf("anchor text not captured: %v", sources[0].Metadata)
	}
	if sources[1].URL != "https://other.example.org/decreto.pdf" {
		t.Errorf("absolute href mangled: %q", sources[1].URL)
	}
}

func TestFilenameFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/docs/lei_8666.pdf", "lei_8666.pdf"},
		{"https://example.com/docs/lei_8666.PDF", "lei_8666.PDF"},
		{"https://example.com/download?id=42", "download.pdf"},
		{"https://example.com/", "document_7.pdf"},
	}
	for _, tc := range cases {
		if got := filenameFromURL(tc.url, 7); got != tc.want {
			t.Errorf("filenameFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
