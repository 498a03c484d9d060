package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"legal-docs-rag/models"

	"github.com/google/uuid"
)

// ExtractionResult is the outcome of extracting one document. A failed
// extraction carries a human-readable error and zero chunks; the pipeline
// reports it and moves on to the next document.
type ExtractionResult struct {
	DocumentID   string
	Status       string // "success" or "failed"
	Chunks       []models.Chunk
	ErrorMessage string
}

const (
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
)

// ChunkExtractor converts one raw document into an ordered sequence of
// hierarchy-annotated chunks. It owns the splitting policy: structural units
// larger than maxChunkSize are split at paragraph/sentence boundaries, with an
// overlap window repeated at the start of each continuation chunk. Position
// indices are assigned sequentially from the final sequence, so overlap text
// never double-counts toward chunk boundaries.
type ChunkExtractor struct {
	structurer   Structurer
	maxChunkSize int
	overlap      int

	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

// NewChunkExtractor creates an extractor with the given splitting parameters.
func NewChunkExtractor(structurer Structurer, maxChunkSize, overlap int) *ChunkExtractor {
	return &ChunkExtractor{
		structurer:     structurer,
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		sentenceRegex:  regexp.MustCompile(`[.!?]+\s+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// Extract transforms document bytes into chunks. Given the same bytes and the
// same structurer behavior it produces the same chunk sequence, which is what
// makes re-ingestion idempotent.
func (e *ChunkExtractor) Extract(ctx context.Context, data []byte, documentID string) *ExtractionResult {
	if len(data) == 0 {
		return &ExtractionResult{
			DocumentID:   documentID,
			Status:       ExtractionFailed,
			ErrorMessage: "empty document",
		}
	}

	structured, err := e.structurer.Structure(ctx, data)
	if err != nil {
		return &ExtractionResult{
			DocumentID:   documentID,
			Status:       ExtractionFailed,
			ErrorMessage: fmt.Sprintf("document structuring failed: %v", err),
		}
	}

	var chunks []models.Chunk
	position := 0

	for _, section := range structured.Sections {
		text := strings.TrimSpace(section.Text)
		if text == "" {
			continue
		}

		for _, content := range e.splitSection(text) {
			chunks = append(chunks, e.newChunk(documentID, position, content, section))
			position++
		}
	}

	if len(chunks) == 0 {
		return &ExtractionResult{
			DocumentID:   documentID,
			Status:       ExtractionFailed,
			ErrorMessage: "document contains no extractable text",
		}
	}

	return &ExtractionResult{
		DocumentID: documentID,
		Status:     ExtractionSuccess,
		Chunks:     chunks,
	}
}

// splitSection splits one structural unit into chunk contents. Units within
// the size limit pass through whole. Oversized units are packed into parts at
// paragraph boundaries, falling back to sentence boundaries and finally hard
// cuts, then every continuation part is prefixed with the overlap window from
// the end of its predecessor.
func (e *ChunkExtractor) splitSection(text string) []string {
	if len(text) <= e.maxChunkSize {
		return []string{text}
	}

	units := e.splitUnits(text)

	var parts []string
	current := new(strings.Builder)
	for _, unit := range units {
		sep := 0
		if current.Len() > 0 {
			sep = 1
		}
		if current.Len()+sep+len(unit) > e.maxChunkSize && current.Len() > 0 {
			parts = append(parts, current.String())
			current = new(strings.Builder)
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	if e.overlap <= 0 {
		return parts
	}

	// Prefix continuations with the tail of the previous part. The overlap is
	// repeated content only; it plays no role in position indexing.
	result := make([]string, len(parts))
	result[0] = parts[0]
	for i := 1; i < len(parts); i++ {
		tail := e.overlapTail(parts[i-1])
		if tail != "" {
			result[i] = tail + "\n" + parts[i]
		} else {
			result[i] = parts[i]
		}
	}
	return result
}

// splitUnits breaks text into packable units no larger than maxChunkSize:
// paragraphs first, oversized paragraphs into sentences, oversized sentences
// into hard character cuts.
func (e *ChunkExtractor) splitUnits(text string) []string {
	var units []string
	for _, para := range e.paragraphRegex.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= e.maxChunkSize {
			units = append(units, para)
			continue
		}
		for _, sentence := range splitAfter(e.sentenceRegex, para) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			for len(sentence) > e.maxChunkSize {
				cut := runeCut(sentence, e.maxChunkSize)
				units = append(units, sentence[:cut])
				sentence = sentence[cut:]
			}
			units = append(units, sentence)
		}
	}
	return units
}

// overlapTail returns the last overlap-sized window of text, preferring to
// start at a sentence boundary inside the window.
func (e *ChunkExtractor) overlapTail(text string) string {
	if len(text) <= e.overlap {
		return text
	}
	// Step the window start forward to the next rune boundary so the slice
	// never opens mid-rune.
	start := len(text) - e.overlap
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	window := text[start:]
	if loc := e.sentenceRegex.FindStringIndex(window); loc != nil {
		trimmed := strings.TrimSpace(window[loc[1]:])
		if trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(window)
}

func (e *ChunkExtractor) newChunk(documentID string, position int, content string, section Section) models.Chunk {
	return models.Chunk{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		Position:      position,
		Content:       content,
		HierarchyPath: append([]string(nil), section.Path...),
		PageSpan:      section.Pages,
		Metadata: map[string]string{
			"word_count":     strconv.Itoa(len(strings.Fields(content))),
			"char_count":     strconv.Itoa(len(content)),
			"citation_count": strconv.Itoa(citationCount(content)),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// citationCount counts legal citation markers in the chunk text.
func citationCount(text string) int {
	return strings.Count(text, "Art.") + strings.Count(text, "§") + strings.Count(text, "Inciso")
}

// runeCut returns the largest index <= limit that falls on a rune boundary,
// so hard character cuts never leave invalid UTF-8 in chunk content. A single
// rune wider than limit is kept whole.
func runeCut(s string, limit int) int {
	if len(s) <= limit {
		return len(s)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}

// splitAfter splits text keeping the separator attached to the preceding
// segment, so sentence punctuation stays with its sentence.
func splitAfter(re *regexp.Regexp, text string) []string {
	locs := re.FindAllStringIndex(text, -1)
	if locs == nil {
		return []string{text}
	}
	var segments []string
	prev := 0
	for _, loc := range locs {
		segments = append(segments, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		segments = append(segments, text[prev:])
	}
	return segments
}
