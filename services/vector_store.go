package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legal-docs-rag/internal/config"
	"legal-docs-rag/internal/logger"
	"legal-docs-rag/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoVectorStore is the production DocumentStore on MongoDB. Documents live
// in the "documents" collection, chunks with their vectors in "chunks".
// Chunk-set writes run in a multi-document transaction (requires a replica
// set), which is what guarantees that queries never observe a partial set.
//
// Similarity search has two modes. With VECTOR_SEARCH_ENABLED the query runs
// through an Atlas $vectorSearch index: approximate nearest neighbor, which
// trades a small recall loss for sub-linear query latency at scale. Without
// it the store falls back to an exact in-process cosine scan over all
// embedded chunks: full recall, linear latency, fine for small corpora.
type MongoVectorStore struct {
	documents *mongo.Collection
	chunks    *mongo.Collection

	vectorSearchEnabled bool
	vectorIndexName     string
}

// NewMongoVectorStore creates a store over the configured database.
func NewMongoVectorStore(client *mongo.Client, cfg *config.Config) *MongoVectorStore {
	db := client.Database(cfg.DBName)
	return &MongoVectorStore{
		documents:           db.Collection("documents"),
		chunks:              db.Collection("chunks"),
		vectorSearchEnabled: cfg.VectorSearchEnabled,
		vectorIndexName:     cfg.VectorIndexName,
	}
}

func (s *MongoVectorStore) StoreDocument(ctx context.Context, doc *models.Document) (string, error) {
	now := time.Now().UTC()
	filter := bson.M{"source_locator": doc.SourceLocator}
	update := bson.M{
		"$set": bson.M{
			"filename":      doc.Filename,
			"metadata":      doc.Metadata,
			"size":          doc.Size,
			"ingested_at":   now,
			"status":        models.StatusProcessing,
			"error_message": "",
		},
		"$inc":         bson.M{"revision": 1},
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "source_locator": doc.SourceLocator},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.Document
	if err := s.documents.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return "", fmt.Errorf("failed to upsert document %s: %w", doc.SourceLocator, err)
	}

	doc.ID = stored.ID
	doc.Revision = stored.Revision
	doc.IngestedAt = stored.IngestedAt
	return stored.ID, nil
}

func (s *MongoVectorStore) StoreChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	for i, c := range chunks {
		if c.Position != i {
			return fmt.Errorf("%w: chunk positions not contiguous at index %d (position %d)", ErrConsistency, i, c.Position)
		}
	}

	var doc models.Document
	if err := s.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc); err != nil {
		return fmt.Errorf("%w: document %s not found: %v", ErrConsistency, documentID, err)
	}

	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		c.Revision = doc.Revision
		docs[i] = c
	}

	session, err := s.documents.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	// All-or-nothing replacement of the document's chunk set. On any error
	// the transaction rolls back and readers keep seeing the prior revision.
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if len(docs) > 0 {
			if _, err := s.chunks.InsertMany(sc, docs); err != nil {
				return nil, err
			}
		}
		if _, err := s.chunks.DeleteMany(sc, bson.M{
			"document_id": documentID,
			"revision":    bson.M{"$ne": doc.Revision},
		}); err != nil {
			return nil, err
		}
		if _, err := s.documents.UpdateOne(sc, bson.M{"_id": documentID}, bson.M{
			"$set": bson.M{
				"chunk_count": len(chunks),
				"status":      chunkSetStatus(chunks),
			},
		}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: chunk set write for document %s rolled back: %v", ErrConsistency, documentID, err)
	}

	logger.Info("Stored chunk set", "document_id", documentID, "revision", doc.Revision, "chunks", len(chunks))
	return nil
}

func (s *MongoVectorStore) Query(ctx context.Context, vector []float32, k int, threshold float64) ([]models.RetrievedChunk, error) {
	var candidates []models.RetrievedChunk
	var err error

	if s.vectorSearchEnabled {
		candidates, err = s.queryAtlas(ctx, vector, k)
	} else {
		candidates, err = s.queryExact(ctx, vector)
	}
	if err != nil {
		return nil, err
	}

	if err := s.joinDocumentContext(ctx, candidates); err != nil {
		return nil, err
	}
	return rankCandidates(candidates, k, threshold), nil
}

// queryAtlas runs an approximate nearest-neighbor search through the Atlas
// vector index. $vectorSearch must be the first pipeline stage.
func (s *MongoVectorStore) queryAtlas(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error) {
	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndexName,
			"path":          "embedding",
			"queryVector":   vector,
			"numCandidates": numCandidates,
			"limit":         k,
		}}},
		{{Key: "$addFields", Value: bson.M{
			"score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := s.chunks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.RetrievedChunk
	for cursor.Next(ctx) {
		var row struct {
			models.Chunk `bson:",inline"`
			Score        float64 `bson:"score"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode search result: %w", err)
		}
		candidates = append(candidates, retrievedChunk(row.Chunk, nil, row.Score))
	}
	return candidates, cursor.Err()
}

// queryExact scans every embedded chunk and scores it in process.
func (s *MongoVectorStore) queryExact(ctx context.Context, vector []float32) ([]models.RetrievedChunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"embedded": true})
	if err != nil {
		return nil, fmt.Errorf("chunk scan failed: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.RetrievedChunk
	for cursor.Next(ctx) {
		var c models.Chunk
		if err := cursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}
		candidates = append(candidates, retrievedChunk(c, nil, cosineSimilarity(vector, c.Embedding)))
	}
	return candidates, cursor.Err()
}

// joinDocumentContext fills filename and source metadata on each candidate.
func (s *MongoVectorStore) joinDocumentContext(ctx context.Context, candidates []models.RetrievedChunk) error {
	if len(candidates) == 0 {
		return nil
	}

	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			ids = append(ids, c.DocumentID)
		}
	}

	cursor, err := s.documents.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("document lookup failed: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make(map[string]models.Document, len(ids))
	for cursor.Next(ctx) {
		var d models.Document
		if err := cursor.Decode(&d); err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		docs[d.ID] = d
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	for i := range candidates {
		if d, ok := docs[candidates[i].DocumentID]; ok {
			candidates[i].Filename = d.Filename
			candidates[i].SourceMetadata = d.Metadata
		}
	}
	return nil
}

func (s *MongoVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	session, err := s.documents.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.chunks.DeleteMany(sc, bson.M{"document_id": documentID}); err != nil {
			return nil, err
		}
		res, err := s.documents.DeleteOne(sc, bson.M{"_id": documentID})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

func (s *MongoVectorStore) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	if err := s.documents.FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	return &doc, nil
}

func (s *MongoVectorStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "ingested_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("document list failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

func (s *MongoVectorStore) PendingChunks(ctx context.Context, limit int) ([]models.Chunk, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.chunks.Find(ctx, bson.M{
		"embedded":        false,
		"embedding_error": bson.M{"$ne": ""},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("pending chunk scan failed: %w", err)
	}
	defer cursor.Close(ctx)

	var pending []models.Chunk
	if err := cursor.All(ctx, &pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending chunks: %w", err)
	}
	return pending, nil
}

func (s *MongoVectorStore) AttachEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	res := s.chunks.FindOneAndUpdate(ctx,
		bson.M{"_id": chunkID, "embedded": false},
		bson.M{
			"$set":   bson.M{"embedding": vector, "embedded": true},
			"$unset": bson.M{"embedding_error": ""},
		},
	)
	var updated models.Chunk
	if err := res.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: pending chunk %s", ErrNotFound, chunkID)
		}
		return fmt.Errorf("failed to attach embedding to chunk %s: %w", chunkID, err)
	}

	// Promote the document once its last pending chunk is embedded.
	remaining, err := s.chunks.CountDocuments(ctx, bson.M{
		"document_id": updated.DocumentID,
		"embedded":    false,
	})
	if err != nil {
		// Status promotion is best-effort; the embedding itself is persisted.
		logger.Warn("failed to count pending chunks for status promotion",
			"document_id", updated.DocumentID, "error", err)
		return nil
	}
	status := models.StatusPartial
	if remaining == 0 {
		status = models.StatusCompleted
	}
	_, _ = s.documents.UpdateOne(ctx, bson.M{"_id": updated.DocumentID}, bson.M{"$set": bson.M{"status": status}})
	return nil
}
