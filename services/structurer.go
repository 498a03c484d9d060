package services

import (
	"context"

	"legal-docs-rag/models"
)

// Section is one structural unit of a document: the heading path locating it,
// its body text and the page range it spans. Sections arrive in document order.
type Section struct {
	Path  []string
	Text  string
	Pages models.PageSpan
}

// StructuredDocument is the output of the document-structuring capability.
type StructuredDocument struct {
	Pages    int
	Sections []Section
}

// Structurer is the external document-structuring capability. Implementations
// turn raw document bytes into ordered sections or fail with a reported error;
// any concrete provider can be substituted without touching the pipeline.
type Structurer interface {
	Structure(ctx context.Context, data []byte) (*StructuredDocument, error)
}
