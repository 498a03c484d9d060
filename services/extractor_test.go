package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"legal-docs-rag/models"
)

// fakeStructurer returns canned sections regardless of input bytes.
type fakeStructurer struct {
	sections []Section
	err      error
}

func (f *fakeStructurer) Structure(ctx context.Context, data []byte) (*StructuredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &StructuredDocument{Pages: 1, Sections: f.sections}, nil
}

func TestExtractAssignsContiguousPositions(t *testing.T) {
	structurer := &fakeStructurer{sections: []Section{
		{Path: []string{"1. Intro"}, Text: "First section body."},
		{Path: []string{"1. Intro", "1.1 Scope"}, Text: "Second section body."},
		{Path: []string{"2. Terms"}, Text: "Third section body."},
	}}
	extractor := NewChunkExtractor(structurer, 1000, 200)

	result := extractor.Extract(context.Background(), []byte("pdf bytes"), "doc-1")
	if result.Status != ExtractionSuccess {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(result.Chunks))
	}
	for i, c := range result.Chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk %d has document ID %q", i, c.DocumentID)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has no ID", i)
		}
	}
	if got := result.Chunks[1].HierarchyPath; len(got) != 2 || got[1] != "1.1 Scope" {
		t.Errorf("unexpected hierarchy path: %v", got)
	}
}

func TestExtractSplitsOversizedSection(t *testing.T) {
	// 2500 chars of sentences against a 1000-char limit should pack into
	// three chunks, all under the same heading path.
	sentence := strings.Repeat("word ", 19) + "stop. " // 101 chars
	body := strings.TrimSpace(strings.Repeat(sentence, 25))
	if len(body) < 2400 || len(body) > 2600 {
		t.Fatalf("test body has unexpected length %d", len(body))
	}

	structurer := &fakeStructurer{sections: []Section{
		{Path: []string{"Art. 5"}, Text: body, Pages: models.PageSpan{First: 2, Last: 4}},
	}}
	extractor := NewChunkExtractor(structurer, 1000, 200)

	result := extractor.Extract(context.Background(), []byte("pdf bytes"), "doc-1")
	if result.Status != ExtractionSuccess {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(result.Chunks))
	}

	for i, c := range result.Chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
		if len(c.HierarchyPath) != 1 || c.HierarchyPath[0] != "Art. 5" {
			t.Errorf("chunk %d lost its heading path: %v", i, c.HierarchyPath)
		}
		if c.PageSpan != (models.PageSpan{First: 2, Last: 4}) {
			t.Errorf("chunk %d lost its page span: %+v", i, c.PageSpan)
		}
	}

	// Continuation chunks start with overlap text repeated from the previous
	// chunk's tail.
	first := result.Chunks[0].Content
	second := result.Chunks[1].Content
	overlapLine := second[:strings.Index(second, "\n")]
	if !strings.HasSuffix(first, overlapLine) {
		t.Errorf("second chunk does not start with the first chunk's tail")
	}
}

func TestExtractMultibyteTextStaysValidUTF8(t *testing.T) {
	// One unbroken run of two-byte runes, offset by a single ASCII byte so
	// the hard-cut index lands mid-rune unless cuts respect boundaries.
	body := "a" + strings.Repeat("ç", 2500)

	structurer := &fakeStructurer{sections: []Section{
		{Path: []string{"Art. 1"}, Text: body},
	}}
	extractor := NewChunkExtractor(structurer, 1000, 200)

	result := extractor.Extract(context.Background(), []byte("pdf bytes"), "doc-1")
	if result.Status != ExtractionSuccess {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	if len(result.Chunks) < 2 {
		t.Fatalf("expected hard-cut split, got %d chunks", len(result.Chunks))
	}

	var rebuilt strings.Builder
	for i, c := range result.Chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d content is not valid UTF-8", i)
		}
		if i == 0 {
			rebuilt.WriteString(c.Content)
		}
	}
	// No rune may be lost at the first cut either.
	if !strings.HasPrefix(body, strings.ReplaceAll(rebuilt.String(), "\n", "")) {
		t.Errorf("first chunk is not a prefix of the source text")
	}
}

func TestRuneCut(t *testing.T) {
	cases := []struct {
		name  string
		s     string
		limit int
		want  int
	}{
		{"ascii at limit", "abcdef", 3, 3},
		{"short string", "ab", 10, 2},
		{"mid-rune backs up", "aç", 2, 1},
		{"boundary kept", "çç", 2, 2},
		{"oversized rune kept whole", "ç", 1, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := runeCut(tc.s, tc.limit)
			if got != tc.want {
				t.Errorf("runeCut(%q, %d) = %d, want %d", tc.s, tc.limit, got, tc.want)
			}
			if !utf8.ValidString(tc.s[:got]) {
				t.Errorf("runeCut(%q, %d) cut mid-rune", tc.s, tc.limit)
			}
		})
	}
}

func TestOverlapTailStartsOnRuneBoundary(t *testing.T) {
	e := NewChunkExtractor(&fakeStructurer{}, 1000, 200)
	// Three-byte runes guarantee the naive window start (len-overlap, with
	// overlap 200) lands inside a rune.
	text := strings.Repeat("…", 300)
	tail := e.overlapTail(text)
	if !utf8.ValidString(tail) {
		t.Fatalf("overlap tail is not valid UTF-8: %q", tail)
	}
	if tail == "" || len(tail) > 200 {
		t.Fatalf("unexpected tail length %d", len(tail))
	}
}

func TestExtractDropsWhitespaceOnlySections(t *testing.T) {
	structurer := &fakeStructurer{sections: []Section{
		{Path: []string{"1"}, Text: "Real content."},
		{Path: []string{"2"}, Text: "   \n\t  "},
		{Path: []string{"3"}, Text: "More content."},
	}}
	extractor := NewChunkExtractor(structurer, 1000, 200)

	result := extractor.Extract(context.Background(), []byte("pdf bytes"), "doc-1")
	if result.Status != ExtractionSuccess {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(result.Chunks))
	}
	// Positions stay contiguous even with a section dropped in the middle.
	if result.Chunks[0].Position != 0 || result.Chunks[1].Position != 1 {
		t.Errorf("positions not contiguous: %d, %d", result.Chunks[0].Position, result.Chunks[1].Position)
	}
}

func TestExtractFailsOnEmptyDocument(t *testing.T) {
	extractor := NewChunkExtractor(&fakeStructurer{}, 1000, 200)

	result := extractor.Extract(context.Background(), nil, "doc-1")
	if result.Status != ExtractionFailed {
		t.Fatalf("expected failure for empty document, got %s", result.Status)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("failed extraction must carry zero chunks, got %d", len(result.Chunks))
	}
}

func TestExtractFailsOnStructurerError(t *testing.T) {
	structurer := &fakeStructurer{err: errors.New("corrupt xref table")}
	extractor := NewChunkExtractor(structurer, 1000, 200)

	result := extractor.Extract(context.Background(), []byte("not a pdf"), "doc-1")
	if result.Status != ExtractionFailed {
		t.Fatalf("expected failure, got %s", result.Status)
	}
	if !strings.Contains(result.ErrorMessage, "corrupt xref table") {
		t.Errorf("error message lost the cause: %q", result.ErrorMessage)
	}
}

func TestChunkMetadataCounts(t *testing.T) {
	structurer := &fakeStructurer{sections: []Section{
		{Path: []string{"Cap. I"}, Text: "Art. 1 and Art. 2 apply per § 3, see Inciso II."},
	}}
	extractor := NewChunkExtractor(structurer, 1000, 200)

	result := extractor.Extract(context.Background(), []byte("pdf bytes"), "doc-1")
	if result.Status != ExtractionSuccess {
		t.Fatalf("extraction failed: %s", result.ErrorMessage)
	}
	meta := result.Chunks[0].Metadata
	if meta["citation_count"] != "4" {
		t.Errorf("expected citation_count 4, got %q", meta["citation_count"])
	}
	if meta["word_count"] == "" || meta["char_count"] == "" {
		t.Errorf("missing word/char counts: %v", meta)
	}
}
