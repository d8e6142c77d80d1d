package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	DataDir   string
	IndexPath string
	MetaPath  string
	DBPath    string

	ChunkSize    int
	ChunkOverlap int

	Embedder           string // "http" or "hash"
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingDim       int

	QdrantURL        string // Empty disables the Qdrant mirror
	QdrantCollection string

	FetchTimeout time.Duration
	FetchRPS     float64
	MaxUploadMB  int64
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the numeric ones.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Walk up to find a project-level .env
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DataDir:            dataDir,
		IndexPath:          getEnv("INDEX_PATH", filepath.Join(dataDir, "faiss.index")),
		MetaPath:           getEnv("META_PATH", filepath.Join(dataDir, "faiss_meta.json")),
		DBPath:             getEnv("DB_PATH", filepath.Join(dataDir, "batches.db")),
		Embedder:           strings.ToLower(getEnv("EMBEDDER", "hash")),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "all-MiniLM-L6-v2"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		QdrantURL:          getEnv("QDRANT_URL", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "chunks"),
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.ChunkSize, err = getInt("CHUNK_SIZE", 800); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getInt("CHUNK_OVERLAP", 150); err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}

	if cfg.EmbeddingDim, err = getInt("EMBEDDING_DIM", 384); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIM must be greater than 0")
	}

	switch cfg.Embedder {
	case "http", "hash":
	default:
		return nil, fmt.Errorf("EMBEDDER must be http or hash, got %q", cfg.Embedder)
	}

	timeout, err := time.ParseDuration(getEnv("FETCH_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("FETCH_TIMEOUT must be a valid duration: %w", err)
	}
	cfg.FetchTimeout = timeout

	rps, err := strconv.ParseFloat(getEnv("FETCH_RPS", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("FETCH_RPS must be a valid number: %w", err)
	}
	if rps <= 0 {
		return nil, fmt.Errorf("FETCH_RPS must be greater than 0")
	}
	cfg.FetchRPS = rps

	maxUpload, err := getInt("MAX_UPLOAD_MB", 64)
	if err != nil {
		return nil, err
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be greater than 0")
	}
	cfg.MaxUploadMB = int64(maxUpload)

	// Artifacts and the ledger live under these directories
	for _, p := range []string{cfg.IndexPath, cfg.MetaPath, cfg.DBPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	return level, nil
}
