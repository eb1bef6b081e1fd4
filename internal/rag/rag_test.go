package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/config"
	"pdfchat/internal/models"
	"pdfchat/internal/vectorstore"
)

type fakeEmbedder struct {
	docErr     error
	queryErr   error
	docCalls   int
	queryCalls int
	lastTexts  []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.docCalls++
	f.lastTexts = texts
	if f.docErr != nil {
		return nil, f.docErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{0, 1, 0}, nil
}

type fakeCompleter struct {
	err       error
	reply     string
	calls     int
	gotSystem string
	gotPrompt string
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	f.gotSystem = system
	f.gotPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeStore records batches and answers searches with insertion order.
type fakeStore struct {
	upsertErr error
	searchErr error
	batches   [][]vectorstore.Entry
	topK      int
}

func (f *fakeStore) Upsert(_ context.Context, entries []vectorstore.Entry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	batch := make([]vectorstore.Entry, len(entries))
	copy(batch, entries)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]vectorstore.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.topK = topK
	var results []vectorstore.SearchResult
	for _, batch := range f.batches {
		for _, e := range batch {
			results = append(results, vectorstore.SearchResult{
				Content:        e.Content,
				SourceFilename: e.SourceFilename,
				Score:          1 - float32(len(results))*0.1,
			})
		}
	}
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func newTestPipeline(embedder *fakeEmbedder, completer *fakeCompleter, store *fakeStore, batchSize int) *Pipeline {
	cfg := &config.RAGConfig{
		ChunkSize:    models.DefaultChunkSize,
		ChunkOverlap: models.DefaultChunkOverlap,
		TopK:         models.DefaultTopK,
		BatchSize:    batchSize,
	}
	factory := func(context.Context) (vectorstore.Store, error) { return store, nil }
	return NewPipeline(embedder, completer, factory, cfg)
}

func upload(name, content string) models.Upload {
	return models.Upload{Filename: name, Content: []byte(content), MediaType: "text/plain"}
}

func TestAskRequiresDocuments(t *testing.T) {
	embedder := &fakeEmbedder{}
	p := newTestPipeline(embedder, &fakeCompleter{}, &fakeStore{}, 100)

	_, err := p.Ask(context.Background(), nil, "What color is the sky?")

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, embedder.docCalls)
}

func TestAskRequiresQuestion(t *testing.T) {
	embedder := &fakeEmbedder{}
	p := newTestPipeline(embedder, &fakeCompleter{}, &fakeStore{}, 100)

	_, err := p.Ask(context.Background(), []models.Upload{upload("sky.txt", "The sky is blue.")}, "   ")

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, embedder.docCalls)
}

func TestAskAnswersFromContext(t *testing.T) {
	embedder := &fakeEmbedder{}
	completer := &fakeCompleter{reply: "The sky is blue, according to the documents."}
	store := &fakeStore{}
	p := newTestPipeline(embedder, completer, store, 100)

	answer, err := p.Ask(context.Background(),
		[]models.Upload{upload("sky.txt", "The sky is blue.")},
		"What color is the sky?")

	require.NoError(t, err)
	assert.Contains(t, answer.Content, "blue")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "The sky is blue.", answer.Sources[0].PageContent)

	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, models.SystemPrompt, completer.gotSystem)
	assert.Contains(t, completer.gotPrompt, "The sky is blue.")
	assert.Contains(t, completer.gotPrompt, "What color is the sky?")
	assert.Equal(t, 1, embedder.docCalls)
	assert.Equal(t, 1, embedder.queryCalls)
}

func TestAskAnswerReturnedVerbatim(t *testing.T) {
	completer := &fakeCompleter{reply: "The provided context does not contain this information."}
	p := newTestPipeline(&fakeEmbedder{}, completer, &fakeStore{}, 100)

	answer, err := p.Ask(context.Background(),
		[]models.Upload{upload("sky.txt", "The sky is blue.")},
		"Who wrote Hamlet?")

	require.NoError(t, err)
	assert.Equal(t, completer.reply, answer.Content)
}

func TestAskExtractionFailureNamesFile(t *testing.T) {
	embedder := &fakeEmbedder{}
	p := newTestPipeline(embedder, &fakeCompleter{}, &fakeStore{}, 100)

	uploads := []models.Upload{
		upload("good.txt", "The sky is blue."),
		{Filename: "broken.pdf", Content: []byte("not a pdf"), MediaType: "application/pdf"},
	}
	_, err := p.Ask(context.Background(), uploads, "What color is the sky?")

	var xerr *models.ExtractionError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, "broken.pdf", xerr.Filename)
	assert.Contains(t, err.Error(), "broken.pdf")
	assert.Zero(t, embedder.docCalls)
}

func TestAskEmbeddingFailureIsUpstream(t *testing.T) {
	embedder := &fakeEmbedder{docErr: fmt.Errorf("quota exceeded")}
	completer := &fakeCompleter{}
	p := newTestPipeline(embedder, completer, &fakeStore{}, 100)

	_, err := p.Ask(context.Background(),
		[]models.Upload{upload("sky.txt", "The sky is blue.")},
		"What color is the sky?")

	var uerr *models.UpstreamServiceError
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Zero(t, completer.calls)
}

func TestAskCompletionFailureIsUpstream(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model overloaded")}
	p := newTestPipeline(&fakeEmbedder{}, completer, &fakeStore{}, 100)

	_, err := p.Ask(context.Background(),
		[]models.Upload{upload("sky.txt", "The sky is blue.")},
		"What color is the sky?")

	var uerr *models.UpstreamServiceError
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestAskIndexFailureIsUpstream(t *testing.T) {
	store := &fakeStore{upsertErr: fmt.Errorf("index unavailable")}
	completer := &fakeCompleter{}
	p := newTestPipeline(&fakeEmbedder{}, completer, store, 100)

	_, err := p.Ask(context.Background(),
		[]models.Upload{upload("sky.txt", "The sky is blue.")},
		"What color is the sky?")

	var uerr *models.UpstreamServiceError
	require.True(t, errors.As(err, &uerr))
	assert.Zero(t, completer.calls)
}

func TestAskUpsertsInSequentialBatches(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeEmbedder{}, &fakeCompleter{reply: "ok"}, store, 2)

	uploads := []models.Upload{
		upload("a.txt", "alpha content"),
		upload("b.txt", "bravo content"),
		upload("c.txt", "charlie content"),
		upload("d.txt", "delta content"),
		upload("e.txt", "echo content"),
	}
	_, err := p.Ask(context.Background(), uploads, "which file mentions bravo?")

	require.NoError(t, err)
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[1], 2)
	assert.Len(t, store.batches[2], 1)

	// entries keep upload order regardless of extraction completion order
	var ids []string
	for _, batch := range store.batches {
		for _, e := range batch {
			ids = append(ids, e.ID)
		}
	}
	assert.Equal(t, []string{"a.txt-1", "b.txt-1", "c.txt-1", "d.txt-1", "e.txt-1"}, ids)
	assert.Equal(t, models.DefaultTopK, store.topK)
}

func TestAskJoinsContextWithBlankLines(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	p := newTestPipeline(&fakeEmbedder{}, completer, &fakeStore{}, 100)

	uploads := []models.Upload{
		upload("a.txt", "alpha content"),
		upload("b.txt", "bravo content"),
	}
	_, err := p.Ask(context.Background(), uploads, "what is in the files?")

	require.NoError(t, err)
	assert.Contains(t, completer.gotPrompt, "alpha content\n\nbravo content")
}

func TestAskTruncatesLongSourcePreviews(t *testing.T) {
	long := strings.Repeat("s", 80) + " " + strings.Repeat("t", 120)
	p := newTestPipeline(&fakeEmbedder{}, &fakeCompleter{reply: "ok"}, &fakeStore{}, 100)

	answer, err := p.Ask(context.Background(),
		[]models.Upload{upload("long.txt", long)},
		"what does the file say?")

	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	preview := answer.Sources[0].PageContent
	assert.Equal(t, models.PreviewLength+len(models.PreviewEllipsis), len(preview))
	assert.True(t, strings.HasSuffix(preview, models.PreviewEllipsis))
	assert.Equal(t, long[:models.PreviewLength], strings.TrimSuffix(preview, models.PreviewEllipsis))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))

	exact := strings.Repeat("a", models.PreviewLength)
	assert.Equal(t, exact, Preview(exact))

	long := strings.Repeat("a", models.PreviewLength+1)
	got := Preview(long)
	assert.Equal(t, long[:models.PreviewLength]+models.PreviewEllipsis, got)
}

func TestPreviewCountsRunesNotBytes(t *testing.T) {
	// 101 runes but 201 bytes; must come back whole, not cut at byte 150
	short := "a" + strings.Repeat("é", 100)
	got := Preview(short)
	assert.Equal(t, short, got)
	assert.True(t, utf8.ValidString(got))

	long := "a" + strings.Repeat("é", 200)
	got = Preview(long)
	assert.True(t, utf8.ValidString(got))
	require.True(t, strings.HasSuffix(got, models.PreviewEllipsis))
	kept := []rune(strings.TrimSuffix(got, models.PreviewEllipsis))
	assert.Len(t, kept, models.PreviewLength)
	assert.Equal(t, []rune(long)[:models.PreviewLength], kept)
}

func TestNewPipelineGuardsBatchSizeAndTopK(t *testing.T) {
	store := &fakeStore{}
	factory := func(context.Context) (vectorstore.Store, error) { return store, nil }
	cfg := &config.RAGConfig{
		ChunkSize:    models.DefaultChunkSize,
		ChunkOverlap: models.DefaultChunkOverlap,
		TopK:         0,
		BatchSize:    -1,
	}
	p := NewPipeline(&fakeEmbedder{}, &fakeCompleter{reply: "ok"}, factory, cfg)

	uploads := []models.Upload{
		upload("a.txt", "alpha content"),
		upload("b.txt", "bravo content"),
		upload("c.txt", "charlie content"),
	}
	_, err := p.Ask(context.Background(), uploads, "what is in the files?")

	require.NoError(t, err)
	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 3)
	assert.Equal(t, models.DefaultTopK, store.topK)
}
