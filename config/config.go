package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Config is the full runtime configuration. Values come from defaults, an
// optional config file and the environment (env wins).
type Config struct {
	Port     string `mapstructure:"port"`
	GinMode  string `mapstructure:"gin_mode"`
	LogLevel string `mapstructure:"log_level"`

	StoreBackend   string `mapstructure:"store_backend"`
	HistoryBackend string `mapstructure:"history_backend"`
	CacheBackend   string `mapstructure:"cache_backend"`

	PostgresURI string `mapstructure:"postgres_uri"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	MongoURI    string `mapstructure:"mongo_uri"`
	MongoDB     string `mapstructure:"mongo_db"`
	RedisAddr   string `mapstructure:"redis_addr"`

	GCPProject        string        `mapstructure:"gcp_project"`
	GCPLocation       string        `mapstructure:"gcp_location"`
	GeminiModel       string        `mapstructure:"gemini_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	EmbeddingDim      int           `mapstructure:"embedding_dim"`
	EmbeddingTimeout  time.Duration `mapstructure:"embedding_timeout"`
	EmbeddingInterval time.Duration `mapstructure:"embedding_interval"`
	LLMTimeout        time.Duration `mapstructure:"llm_timeout"`

	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`

	TopK            int           `mapstructure:"top_k"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	HistoryCacheTTL time.Duration `mapstructure:"history_cache_ttl"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	PurgeInterval   time.Duration `mapstructure:"purge_interval"`

	ChunkMaxChars int `mapstructure:"chunk_max_chars"`
	ChunkMinChars int `mapstructure:"chunk_min_chars"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`

	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	GCSBucket      string `mapstructure:"gcs_bucket"`
	IngestAsync    bool   `mapstructure:"ingest_async"`
	IngestStream   string `mapstructure:"ingest_stream"`
	IngestWorkers  int    `mapstructure:"ingest_workers"`

	STTEnabled  bool     `mapstructure:"stt_enabled"`
	STTLanguage string   `mapstructure:"stt_language"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")

	v.SetDefault("store_backend", BackendMemory)
	v.SetDefault("history_backend", "")
	v.SetDefault("cache_backend", BackendMemory)

	v.SetDefault("postgres_uri", "")
	v.SetDefault("sqlite_path", "data/findlanqbot.db")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db", "findlanqbot")
	v.SetDefault("redis_addr", "")

	v.SetDefault("gcp_project", "")
	v.SetDefault("gcp_location", "us-central1")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("embedding_model", "text-multilingual-embedding-002")
	v.SetDefault("embedding_dim", 768)
	v.SetDefault("embedding_timeout", 15*time.Second)
	v.SetDefault("embedding_interval", 100*time.Millisecond)
	v.SetDefault("llm_timeout", 60*time.Second)

	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay", time.Second)
	v.SetDefault("retry_max_delay", 8*time.Second)

	v.SetDefault("top_k", 5)
	v.SetDefault("history_limit", 10)
	v.SetDefault("history_cache_ttl", 10*time.Minute)
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("purge_interval", 15*time.Minute)

	v.SetDefault("chunk_max_chars", 1000)
	v.SetDefault("chunk_min_chars", 10)
	v.SetDefault("chunk_overlap", 1)

	v.SetDefault("max_upload_bytes", int64(10<<20))
	v.SetDefault("gcs_bucket", "")
	v.SetDefault("ingest_async", false)
	v.SetDefault("ingest_stream", "ingest:stream")
	v.SetDefault("ingest_workers", 2)

	v.SetDefault("stt_enabled", false)
	v.SetDefault("stt_language", "en-US")
	v.SetDefault("cors_origins", []string{"*"})
}

// Load reads configuration. path may be empty; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.HistoryBackend = strings.ToLower(strings.TrimSpace(c.HistoryBackend))
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	if c.HistoryBackend == "" {
		c.HistoryBackend = c.StoreBackend
	}
	if c.CacheBackend == "" {
		c.CacheBackend = BackendMemory
	}
}

// Validate rejects unknown backends and missing connection settings.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.PostgresURI == "" {
			return errors.New("config: POSTGRES_URI is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.HistoryBackend {
	case BackendMemory, BackendSQLite, BackendPostgres:
		if c.HistoryBackend != c.StoreBackend {
			return fmt.Errorf("config: HISTORY_BACKEND %q must match STORE_BACKEND or be mongo", c.HistoryBackend)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo history backend")
		}
	default:
		return fmt.Errorf("config: unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}

	switch c.CacheBackend {
	case BackendMemory, BackendNone:
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis cache")
		}
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.IngestAsync && c.RedisAddr == "" {
		return errors.New("config: INGEST_ASYNC needs REDIS_ADDR")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("config: EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("config: TOP_K must be positive, got %d", c.TopK)
	}
	if c.ChunkMaxChars <= c.ChunkMinChars {
		return errors.New("config: CHUNK_MAX_CHARS must exceed CHUNK_MIN_CHARS")
	}
	return nil
}

// LLMEnabled reports whether Vertex AI credentials were configured.
func (c *Config) LLMEnabled() bool { return c.GCPProject != "" }
