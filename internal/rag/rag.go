package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pdfchat/internal/chunker"
	"pdfchat/internal/config"
	"pdfchat/internal/models"
	"pdfchat/internal/parser"
	"pdfchat/internal/vectorstore"
)

// Embedder maps texts to fixed-dimension vectors. Satisfied by
// langchaingo's embeddings.EmbedderImpl.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer generates one answer from a system prompt and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Pipeline drives one question through extraction, chunking, retrieval and
// answer synthesis. Extraction fans out per document; everything after runs
// strictly in sequence. Any stage failure aborts the request, no partial
// results.
type Pipeline struct {
	embedder  Embedder
	completer Completer
	stores    vectorstore.Factory
	splitter  chunker.Splitter
	topK      int
	batchSize int
}

func NewPipeline(embedder Embedder, completer Completer, stores vectorstore.Factory, cfg *config.RAGConfig) *Pipeline {
	topK := cfg.TopK
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}
	return &Pipeline{
		embedder:  embedder,
		completer: completer,
		stores:    stores,
		splitter:  chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		topK:      topK,
		batchSize: batchSize,
	}
}

// Ask answers a question from the uploaded documents.
func (p *Pipeline) Ask(ctx context.Context, uploads []models.Upload, question string) (*models.Answer, error) {
	if len(uploads) == 0 {
		return nil, &models.ValidationError{Msg: "at least one document is required"}
	}
	if strings.TrimSpace(question) == "" {
		return nil, &models.ValidationError{Msg: "a question is required"}
	}

	sections, err := p.extractAll(ctx, uploads)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("documents", len(uploads)).Int("sections", len(sections)).Msg("extracted uploads")

	chunks := p.splitter.Split(sections)
	if len(chunks) == 0 {
		return nil, &models.ValidationError{Msg: "the uploaded documents contain no text"}
	}
	log.Debug().Int("chunks", len(chunks)).Msg("split sections")

	results, err := p.retrieve(ctx, chunks, question)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("matches", len(results)).Msg("retrieved context")

	return p.synthesize(ctx, results, question)
}

// extractAll parses every upload concurrently. Results are collected into an
// index-addressed slice so the aggregate keeps upload order no matter which
// extraction finishes first.
func (p *Pipeline) extractAll(ctx context.Context, uploads []models.Upload) ([]models.Section, error) {
	perDoc := make([][]models.Section, len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	for i, upload := range uploads {
		g.Go(func() error {
			sections, err := parser.Parse(upload.Filename, upload.Content)
			if err != nil {
				return &models.ExtractionError{Filename: upload.Filename, Err: err}
			}
			perDoc[i] = sections
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Section
	for _, sections := range perDoc {
		all = append(all, sections...)
	}
	return all, nil
}

// retrieve embeds all chunks and the question, fills the index in sequential
// batches, and runs one nearest-neighbor query. A single failed embedding is
// fatal: an incomplete index would degrade answers silently.
func (p *Pipeline) retrieve(ctx context.Context, chunks []models.Chunk, question string) ([]vectorstore.SearchResult, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &models.UpstreamServiceError{Op: "embed chunks", Err: err}
	}
	if len(vectors) != len(chunks) {
		return nil, &models.UpstreamServiceError{
			Op:  "embed chunks",
			Err: fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks)),
		}
	}

	queryVector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, &models.UpstreamServiceError{Op: "embed question", Err: err}
	}

	store, err := p.stores(ctx)
	if err != nil {
		return nil, &models.UpstreamServiceError{Op: "open index", Err: err}
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorstore.Entry{
			ID:             fmt.Sprintf("%s-%d", c.SourceFilename, c.ChunkID),
			Content:        c.Content,
			SourceFilename: c.SourceFilename,
			PageNumber:     c.PageNumber,
			Embedding:      vectors[i],
		}
	}
	for start := 0; start < len(entries); start += p.batchSize {
		end := min(start+p.batchSize, len(entries))
		if err := store.Upsert(ctx, entries[start:end]); err != nil {
			return nil, &models.UpstreamServiceError{Op: "index chunks", Err: err}
		}
	}

	results, err := store.Search(ctx, queryVector, p.topK)
	if err != nil {
		return nil, &models.UpstreamServiceError{Op: "similarity search", Err: err}
	}
	return results, nil
}

// synthesize formats the retrieved context and question into a single prompt,
// asks the completion model once, and attaches truncated source previews.
func (p *Pipeline) synthesize(ctx context.Context, results []vectorstore.SearchResult, question string) (*models.Answer, error) {
	var contextText strings.Builder
	for i, r := range results {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(r.Content)
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, contextText.String(), question)
	answer, err := p.completer.Complete(ctx, models.SystemPrompt, prompt)
	if err != nil {
		return nil, &models.UpstreamServiceError{Op: "completion", Err: err}
	}

	sources := make([]models.SourcePreview, len(results))
	for i, r := range results {
		sources[i] = models.SourcePreview{PageContent: Preview(r.Content)}
	}
	return &models.Answer{Content: answer, Sources: sources}, nil
}

// Preview truncates chunk text for the source list: the first PreviewLength
// characters plus an ellipsis marker, or the text unmodified when short
// enough. Counts runes, not bytes, so multi-byte text is never cut mid-rune.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= models.PreviewLength {
		return text
	}
	return string([]rune(text)[:models.PreviewLength]) + models.PreviewEllipsis
}
