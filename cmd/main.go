package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdfchat/internal/config"
	"pdfchat/internal/embedding"
	"pdfchat/internal/helper"
	"pdfchat/internal/llmservice"
	"pdfchat/internal/rag"
	"pdfchat/internal/server"
	"pdfchat/internal/vectorstore"
	"pdfchat/internal/vectorstore/chromemdb"
	"pdfchat/internal/vectorstore/pgvector"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	addr := flag.String("addr", "", "Listen address override")
	resetStore := flag.Bool("reset-store", false, "Drop and recreate the postgres documents table")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log.Debug().Interface("config", cfg).Msg("Loaded config")

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	completer, err := llmservice.NewClient(&cfg.InferLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing completion client")
	}

	stores, err := newStoreFactory(context.Background(), cfg, *resetStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}

	pipeline := rag.NewPipeline(embedder, completer, stores, &cfg.RAG)
	srv := server.New(pipeline, cfg.Server.MaxUploadMbytes)

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("store", cfg.Store.Type).
		Msg("Starting server")
	if err := srv.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// newStoreFactory binds the configured vector index backend. The memory
// backend hands every request its own index; the persistent and postgres
// backends share one handle across requests.
func newStoreFactory(ctx context.Context, cfg *config.Config, resetStore bool) (vectorstore.Factory, error) {
	switch cfg.Store.Type {
	case "memory":
		return func(context.Context) (vectorstore.Store, error) {
			return chromemdb.NewMemoryStore(cfg.Store.Collection)
		}, nil
	case "persistent":
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			return nil, err
		}
		store, err := chromemdb.NewPersistentStore(cfg.Store.Path, cfg.Store.Collection)
		if err != nil {
			return nil, err
		}
		return func(context.Context) (vectorstore.Store, error) {
			return store, nil
		}, nil
	case "postgres":
		db := pgvector.Connect(cfg.Store.DSN, cfg.Store.Debug)
		if resetStore {
			if err := pgvector.DropDocuments(ctx, db); err != nil {
				return nil, err
			}
		}
		if err := pgvector.InitDB(ctx, db); err != nil {
			return nil, err
		}
		store := pgvector.NewStore(db)
		return func(context.Context) (vectorstore.Store, error) {
			return store, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}
}
