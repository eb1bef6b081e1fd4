package vectorstore

import "context"

// Entry pairs a chunk's embedding with its text and metadata.
type Entry struct {
	ID             string
	Content        string
	SourceFilename string
	PageNumber     int
	Embedding      []float32
}

// SearchResult is one ranked match from a similarity query.
type SearchResult struct {
	Content        string
	SourceFilename string
	Score          float32
}

// Store is a vector index supporting nearest-neighbor retrieval. Results come
// back ranked by descending score, at most topK of them.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)
}

// Factory yields the store for one request. The memory backend returns a
// fresh index each time; persistent backends return a shared handle.
type Factory func(ctx context.Context) (Store, error)
