package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"pdfchat/internal/vectorstore"
)

const compress = false

// Store backs the vector index with chromem-go, either fully in memory or
// persisted under a directory on disk.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewMemoryStore builds an index that lives for a single request.
func NewMemoryStore(collectionName string) (*Store, error) {
	return newStore(chromem.NewDB(), collectionName)
}

// NewPersistentStore opens (or creates) an on-disk index shared across
// requests.
func NewPersistentStore(path, collectionName string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return newStore(db, collectionName)
}

func newStore(db *chromem.DB, collectionName string) (*Store, error) {
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &Store{db: db, collection: collection}, nil
}

func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:      e.ID,
			Content: e.Content,
			Metadata: map[string]string{
				"source": e.SourceFilename,
				"page":   strconv.Itoa(e.PageNumber),
			},
			Embedding: e.Embedding,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]vectorstore.SearchResult, error) {
	// chromem rejects queries asking for more results than stored documents
	if count := s.collection.Count(); topK > count {
		topK = count
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]vectorstore.SearchResult, len(results))
	for i, r := range results {
		matches[i] = vectorstore.SearchResult{
			Content:        r.Content,
			SourceFilename: r.Metadata["source"],
			Score:          r.Similarity,
		}
	}
	return matches, nil
}

// DeleteCollection drops all indexed entries.
func (s *Store) DeleteCollection() error {
	if err := s.db.DeleteCollection(s.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
