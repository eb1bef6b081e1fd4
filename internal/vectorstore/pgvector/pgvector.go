package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdfchat/internal/vectorstore"
)

// The embedding column width matches text-embedding-3-small.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement"`
	EntryID       string    `bun:"entry_id,notnull"`
	Content       string    `bun:"content,notnull"`
	SourceFile    string    `bun:"source_filename,notnull"`
	PageNumber    int       `bun:"page_number"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(1536)"`
	Score         float32   `bun:"score,scanonly"`
}

func Connect(dsn string, debug bool) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store backs the vector index with a pgvector table shared across requests.
// Entry ids combine source filename and chunk sequence; concurrent uploads of
// same-named files can collide, which mirrors the remote-index variant's
// documented behavior.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = Document{
			EntryID:    e.ID,
			Content:    e.Content,
			SourceFile: e.SourceFilename,
			PageNumber: e.PageNumber,
			Embedding:  e.Embedding,
		}
	}
	if _, err := s.db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]vectorstore.SearchResult, error) {
	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("content", "source_filename").
		ColumnExpr("1 / (1 + (embedding <-> ?)) AS score", embedding).
		OrderExpr("embedding <-> ?", embedding).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	matches := make([]vectorstore.SearchResult, len(docs))
	for i, d := range docs {
		matches[i] = vectorstore.SearchResult{
			Content:        d.Content,
			SourceFilename: d.SourceFile,
			Score:          d.Score,
		}
	}
	return matches, nil
}
