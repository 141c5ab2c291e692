// Package config loads service configuration from defaults, an optional .env
// file, and DOCCHAT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Provider names for embedding and generation backends.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Ollama    OllamaConfig
	Retrieval RetrievalConfig
	Chunking  ChunkingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type GeminiConfig struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type RetrievalConfig struct {
	TopK          int
	MinSimilarity float64
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Gemini: GeminiConfig{
			ChatModel:  "gemini-2.0-flash",
			EmbedModel: "gemini-embedding-001",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		Retrieval: RetrievalConfig{
			TopK:          5,
			MinSimilarity: 0.3,
		},
		Chunking: ChunkingConfig{
			Size:    1500,
			Overlap: 200,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, a .env file in the working
// directory when present, and DOCCHAT_* environment variables, in that
// order of increasing precedence.
func Load() (Config, error) {
	godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return Config{}, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			cfg.Chunking.Overlap, cfg.Chunking.Size)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "DOCCHAT_PORT")

	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.ChatModel, "DOCCHAT_GEMINI_MODEL")
	setString(&cfg.Gemini.EmbedModel, "DOCCHAT_GEMINI_EMBED_MODEL")

	setString(&cfg.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.Ollama.ChatModel, "OLLAMA_MODEL")
	setString(&cfg.Ollama.EmbedModel, "OLLAMA_EMBED_MODEL")

	setInt(&cfg.Retrieval.TopK, "DOCCHAT_TOP_K")
	setFloat(&cfg.Retrieval.MinSimilarity, "DOCCHAT_MIN_SIMILARITY")

	setInt(&cfg.Chunking.Size, "DOCCHAT_CHUNK_SIZE")
	setInt(&cfg.Chunking.Overlap, "DOCCHAT_CHUNK_OVERLAP")

	setString(&cfg.Log.Level, "DOCCHAT_LOG_LEVEL")
}

// EmbeddingProvider selects the embedding backend as a pure function of
// configuration: the hosted backend when an API credential is present,
// otherwise the local one.
func (c Config) EmbeddingProvider() string {
	if c.Gemini.APIKey != "" {
		return ProviderGemini
	}
	return ProviderOllama
}

// GenerationProvider resolves a per-request backend choice. An empty or
// unknown value selects the hosted backend when credentialed, falling back
// to the local one.
func (c Config) GenerationProvider(requested string) string {
	if requested == ProviderOllama {
		return ProviderOllama
	}
	if c.Gemini.APIKey == "" {
		return ProviderOllama
	}
	return ProviderGemini
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
