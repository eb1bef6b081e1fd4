package models

// Upload is a document received from the client. It lives for the duration
// of a single request.
type Upload struct {
	Filename  string
	Content   []byte
	MediaType string
}

// Section is a unit of extracted text, typically one page.
type Section struct {
	Content        string
	SourceFilename string
	PageNumber     int
}

// Chunk represents a bounded text window with metadata
type Chunk struct {
	Content        string
	SourceFilename string
	PageNumber     int
	ChunkID        int
}

// SourcePreview is a truncated view of a retrieved chunk, returned to the client.
type SourcePreview struct {
	PageContent string `json:"pageContent"`
}

// Answer is the final pipeline result.
type Answer struct {
	Content string          `json:"answer"`
	Sources []SourcePreview `json:"sources"`
}
