package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"pdfchat/internal/models"
)

// LLMConfig describes one OpenAI-compatible endpoint. The credential is never
// read from the yaml file; KeyEnv names the environment variable that holds it.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	KeyEnv  string `yaml:"key_env"`
	Key     string `yaml:"-"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
	BatchSize    int `yaml:"batch_size"`
}

// StoreConfig selects the vector index backend. "memory" builds a fresh
// request-scoped index per question, "persistent" keeps a chromem database on
// disk, "postgres" targets a pgvector table.
type StoreConfig struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	DSNEnv     string `yaml:"dsn_env"`
	DSN        string `yaml:"-"`
	Debug      bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxUploadMbytes int64  `yaml:"max_upload_mbytes"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	InferLLM LLMConfig    `yaml:"infer_llm"`
	RAG      RAGConfig    `yaml:"rag"`
	Store    StoreConfig  `yaml:"store"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.EmbedLLM.Key = os.Getenv(cfg.EmbedLLM.KeyEnv)
	cfg.InferLLM.Key = os.Getenv(cfg.InferLLM.KeyEnv)
	cfg.Store.DSN = os.Getenv(cfg.Store.DSNEnv)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMbytes == 0 {
		cfg.Server.MaxUploadMbytes = 32
	}
	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "text-embedding-3-small"
	}
	if cfg.EmbedLLM.KeyEnv == "" {
		cfg.EmbedLLM.KeyEnv = "OPENAI_API_KEY"
	}
	if cfg.InferLLM.BaseURL == "" {
		cfg.InferLLM.BaseURL = cfg.EmbedLLM.BaseURL
	}
	if cfg.InferLLM.Model == "" {
		cfg.InferLLM.Model = "gpt-3.5-turbo"
	}
	if cfg.InferLLM.KeyEnv == "" {
		cfg.InferLLM.KeyEnv = cfg.EmbedLLM.KeyEnv
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = models.DefaultChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.BatchSize == 0 {
		cfg.RAG.BatchSize = models.DefaultBatchSize
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./chromemdb"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "pdfchat"
	}
	if cfg.Store.DSNEnv == "" {
		cfg.Store.DSNEnv = "DATABASE_URL"
	}
}

// Validate checks that every credential the selected backends require is
// present. It runs once at startup; a failure must stop the process before it
// accepts requests.
func (cfg *Config) Validate() error {
	if cfg.EmbedLLM.Key == "" {
		return &models.ConfigurationError{Field: cfg.EmbedLLM.KeyEnv}
	}
	if cfg.InferLLM.Key == "" {
		return &models.ConfigurationError{Field: cfg.InferLLM.KeyEnv}
	}
	switch cfg.Store.Type {
	case "memory", "persistent":
	case "postgres":
		if cfg.Store.DSN == "" {
			return &models.ConfigurationError{Field: cfg.Store.DSNEnv}
		}
	default:
		return &models.ConfigurationError{Field: "store.type"}
	}
	return nil
}
