package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"legal-docs-rag/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore with exact cosine search. It
// backs tests and small local runs; the production store is MongoVectorStore.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*models.Document // by ID
	byLocator map[string]string           // source locator -> document ID
	chunks    map[string][]models.Chunk   // by document ID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*models.Document),
		byLocator: make(map[string]string),
		chunks:    make(map[string][]models.Chunk),
	}
}

func (m *MemoryStore) StoreDocument(ctx context.Context, doc *models.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byLocator[doc.SourceLocator]; ok {
		existing := m.documents[id]
		existing.Revision++
		existing.Filename = doc.Filename
		existing.Metadata = doc.Metadata
		existing.Size = doc.Size
		existing.IngestedAt = time.Now().UTC()
		existing.Status = models.StatusProcessing
		doc.ID = existing.ID
		doc.Revision = existing.Revision
		return id, nil
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Revision = 1
	doc.IngestedAt = time.Now().UTC()
	doc.Status = models.StatusProcessing
	stored := *doc
	m.documents[doc.ID] = &stored
	m.byLocator[doc.SourceLocator] = doc.ID
	return doc.ID, nil
}

func (m *MemoryStore) StoreChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return fmt.Errorf("%w: document %s not found", ErrConsistency, documentID)
	}
	for i, c := range chunks {
		if c.Position != i {
			return fmt.Errorf("%w: chunk positions not contiguous at index %d (position %d)", ErrConsistency, i, c.Position)
		}
	}

	// Single assignment under the lock: readers see the old set or the new
	// one, never a mix.
	replacement := make([]models.Chunk, len(chunks))
	copy(replacement, chunks)
	m.chunks[documentID] = replacement

	doc.ChunkCount = len(chunks)
	doc.Status = chunkSetStatus(chunks)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, vector []float32, k int, threshold float64) ([]models.RetrievedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []models.RetrievedChunk
	for docID, chunks := range m.chunks {
		doc := m.documents[docID]
		for _, c := range chunks {
			if !c.Embedded {
				continue
			}
			candidates = append(candidates, retrievedChunk(c, doc, cosineSimilarity(vector, c.Embedding)))
		}
	}
	return rankCandidates(candidates, k, threshold), nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	delete(m.byLocator, doc.SourceLocator)
	delete(m.documents, documentID)
	delete(m.chunks, documentID)
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	copied := *doc
	return &copied, nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]models.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (m *MemoryStore) PendingChunks(ctx context.Context, limit int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []models.Chunk
	for _, chunks := range m.chunks {
		for _, c := range chunks {
			if !c.Embedded && c.EmbeddingError != "" {
				pending = append(pending, c)
				if limit > 0 && len(pending) >= limit {
					return pending, nil
				}
			}
		}
	}
	return pending, nil
}

func (m *MemoryStore) AttachEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for docID, chunks := range m.chunks {
		for i, c := range chunks {
			if c.ID != chunkID {
				continue
			}
			chunks[i].Embedding = vector
			chunks[i].Embedded = true
			chunks[i].EmbeddingError = ""
			if doc, ok := m.documents[docID]; ok {
				doc.Status = chunkSetStatus(chunks)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID)
}

// chunkSetStatus derives the document status from its chunk set: completed
// when every chunk is embedded, partial otherwise.
func chunkSetStatus(chunks []models.Chunk) string {
	for _, c := range chunks {
		if !c.Embedded {
			return models.StatusPartial
		}
	}
	return models.StatusCompleted
}

// retrievedChunk joins a chunk with its document context and score.
func retrievedChunk(c models.Chunk, doc *models.Document, score float64) models.RetrievedChunk {
	rc := models.RetrievedChunk{
		ChunkID:       c.ID,
		DocumentID:    c.DocumentID,
		Position:      c.Position,
		Content:       c.Content,
		HierarchyPath: c.HierarchyPath,
		PageSpan:      c.PageSpan,
		Similarity:    score,
	}
	if doc != nil {
		rc.Filename = doc.Filename
		rc.SourceMetadata = doc.Metadata
	}
	return rc
}
