package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var envVars = []string{
	"API_PORT", "LOG_LEVEL", "LOG_FORMAT", "DATA_DIR", "INDEX_PATH", "META_PATH", "DB_PATH",
	"CHUNK_SIZE", "CHUNK_OVERLAP", "EMBEDDER", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
	"EMBEDDING_API_KEY", "EMBEDDING_DIM", "QDRANT_URL", "QDRANT_COLLECTION",
	"FETCH_TIMEOUT", "FETCH_RPS", "MAX_UPLOAD_MB",
}

// isolateEnv clears all config variables and moves into an empty directory
// so no .env file is picked up. Everything is restored on cleanup.
func isolateEnv(t *testing.T) {
	t.Helper()
	originalEnv := make(map[string]string)
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	originalWd, _ := os.Getwd()
	_ = os.Chdir(t.TempDir())
	t.Cleanup(func() {
		_ = os.Chdir(originalWd)
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name:     "defaults",
			setupEnv: func(t *testing.T) {},
			wantErr:  false,
			checkConfig: func(cfg *Config) bool {
				return cfg.APIPort == "8000" &&
					cfg.LogLevel == slog.LevelInfo &&
					cfg.LogFormat == "text" &&
					cfg.ChunkSize == 800 &&
					cfg.ChunkOverlap == 150 &&
					cfg.Embedder == "hash" &&
					cfg.EmbeddingDim == 384 &&
					cfg.EmbeddingModelName == "all-MiniLM-L6-v2" &&
					cfg.QdrantURL == "" &&
					cfg.QdrantCollection == "chunks" &&
					cfg.FetchTimeout == 30*time.Second &&
					cfg.FetchRPS == 2 &&
					cfg.MaxUploadMB == 64 &&
					filepath.Base(cfg.IndexPath) == "faiss.index" &&
					filepath.Base(cfg.MetaPath) == "faiss_meta.json" &&
					filepath.Base(cfg.DBPath) == "batches.db"
			},
		},
		{
			name: "custom values",
			setupEnv: func(t *testing.T) {
				setEnv("API_PORT", "9100")
				setEnv("LOG_LEVEL", "debug")
				setEnv("LOG_FORMAT", "JSON")
				setEnv("CHUNK_SIZE", "400")
				setEnv("CHUNK_OVERLAP", "50")
				setEnv("EMBEDDER", "http")
				setEnv("QDRANT_URL", "http://localhost:6333")
				setEnv("FETCH_TIMEOUT", "5s")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.APIPort == "9100" &&
					cfg.LogLevel == slog.LevelDebug &&
					cfg.LogFormat == "json" &&
					cfg.ChunkSize == 400 &&
					cfg.ChunkOverlap == 50 &&
					cfg.Embedder == "http" &&
					cfg.QdrantURL == "http://localhost:6333" &&
					cfg.FetchTimeout == 5*time.Second
			},
		},
		{
			name: "artifact paths follow DATA_DIR",
			setupEnv: func(t *testing.T) {
				setEnv("DATA_DIR", filepath.Join(t.TempDir(), "store"))
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return filepath.Dir(cfg.IndexPath) == cfg.DataDir &&
					filepath.Dir(cfg.MetaPath) == cfg.DataDir &&
					filepath.Dir(cfg.DBPath) == cfg.DataDir
			},
		},
		{
			name: "invalid CHUNK_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("CHUNK_SIZE", "big")
			},
			wantErr: true,
		},
		{
			name: "zero CHUNK_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("CHUNK_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "overlap not smaller than size",
			setupEnv: func(t *testing.T) {
				setEnv("CHUNK_SIZE", "100")
				setEnv("CHUNK_OVERLAP", "100")
			},
			wantErr: true,
		},
		{
			name: "negative overlap",
			setupEnv: func(t *testing.T) {
				setEnv("CHUNK_OVERLAP", "-1")
			},
			wantErr: true,
		},
		{
			name: "unknown embedder",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDER", "magic")
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			setupEnv: func(t *testing.T) {
				setEnv("LOG_LEVEL", "loud")
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			setupEnv: func(t *testing.T) {
				setEnv("LOG_FORMAT", "xml")
			},
			wantErr: true,
		},
		{
			name: "invalid FETCH_TIMEOUT",
			setupEnv: func(t *testing.T) {
				setEnv("FETCH_TIMEOUT", "soon")
			},
			wantErr: true,
		},
		{
			name: "zero FETCH_RPS",
			setupEnv: func(t *testing.T) {
				setEnv("FETCH_RPS", "0")
			},
			wantErr: true,
		},
		{
			name: "zero EMBEDDING_DIM",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIM", "0")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	isolateEnv(t)

	tmpDir := t.TempDir()
	indexPath := filepath.Join(tmpDir, "idx", "faiss.index")
	dbPath := filepath.Join(tmpDir, "db", "batches.db")
	setEnv("INDEX_PATH", indexPath)
	setEnv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, p := range []string{indexPath, dbPath} {
		if _, err := os.Stat(filepath.Dir(p)); os.IsNotExist(err) {
			t.Errorf("Load() should create directory for %s: %v", p, err)
		}
	}

	if cfg.IndexPath != indexPath {
		t.Errorf("Load() IndexPath = %v, want %v", cfg.IndexPath, indexPath)
	}
	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestGetEnv(t *testing.T) {
	originalValue := os.Getenv("TEST_ENV_VAR")
	defer func() {
		if originalValue != "" {
			setEnv("TEST_ENV_VAR", originalValue)
		} else {
			unsetEnv("TEST_ENV_VAR")
		}
	}()

	tests := []struct {
		name         string
		setupEnv     func()
		key          string
		defaultValue string
		want         string
	}{
		{
			name: "env var set",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "set-value")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "set-value",
		},
		{
			name: "env var not set",
			setupEnv: func() {
				unsetEnv("TEST_ENV_VAR")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name: "empty env var uses default",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}
