// Package app wires configuration into concrete stores, providers and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/config"
	"github.com/mohammadjaf013/findlanqbot/internal/cache"
	"github.com/mohammadjaf013/findlanqbot/internal/providers"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/embedding"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/llm"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/stt"
	"github.com/mohammadjaf013/findlanqbot/internal/rag"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories/memory"
	mongorepo "github.com/mohammadjaf013/findlanqbot/internal/repositories/mongo"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories/postgres"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories/sqlite"
	"github.com/mohammadjaf013/findlanqbot/internal/retry"
	"github.com/mohammadjaf013/findlanqbot/internal/services"
	"github.com/mohammadjaf013/findlanqbot/internal/storage"
	"github.com/mohammadjaf013/findlanqbot/internal/workers"
)

type closer struct {
	name string
	fn   func() error
}

// Container owns every client opened at startup.
type Container struct {
	Config *config.Config
	Log    *logrus.Logger

	Chunks        repositories.ChunkStore
	History       services.HistoryService
	Ingest        services.IngestService
	Chat          services.ChatService
	Consultations services.ConsultationService

	// Redis is nil unless REDIS_ADDR is set.
	Redis *redis.Client

	closers []closer
}

func (c *Container) onClose(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Close releases clients in reverse order of opening.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// RetryPolicy is the backoff shared by embedding and generation calls.
func RetryPolicy(cfg *config.Config) retry.Policy {
	p := retry.Default(providers.IsTransient)
	if cfg.RetryMaxAttempts > 0 {
		p.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		p.BaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryMaxDelay > 0 {
		p.MaxDelay = cfg.RetryMaxDelay
	}
	return p
}

type stores struct {
	chunks        repositories.ChunkStore
	history       repositories.HistoryStore
	consultations repositories.ConsultationStore
}

func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Container, error) {
	if log == nil {
		log = logrus.New()
	}
	c := &Container{Config: cfg, Log: log}
	if err := c.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	cfg := c.Config

	st, err := c.openStores(ctx)
	if err != nil {
		return err
	}
	if cfg.HistoryBackend == config.BackendMongo {
		if st.history, err = c.openMongoHistory(ctx); err != nil {
			return err
		}
	}
	c.Chunks = st.chunks

	if cfg.RedisAddr != "" {
		rdb, err := config.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		c.Redis = rdb
		c.onClose("redis", rdb.Close)
	}

	var historyCache cache.Cache
	switch cfg.CacheBackend {
	case config.BackendRedis:
		historyCache = cache.NewRedisCache(c.Redis)
	case config.BackendNone:
		historyCache = cache.Noop{}
	default:
		historyCache = cache.NewMemoryCache()
	}

	policy := RetryPolicy(cfg)

	var (
		generator llm.Provider
		embedder  embedding.Provider
	)
	if cfg.LLMEnabled() {
		g, err := llm.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		c.onClose("gemini", g.Close)
		generator = g

		e, err := embedding.NewVertexEmbedding(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.EmbeddingModel, cfg.EmbeddingDim)
		if err != nil {
			return fmt.Errorf("vertex embeddings: %w", err)
		}
		c.onClose("vertex embeddings", e.Close)
		embedder = e
	} else {
		c.Log.Warn("GCP_PROJECT not set: hash embeddings and extractive answers only")
	}

	var speech stt.Provider
	if cfg.STTEnabled {
		s, err := stt.NewGoogleSpeech(ctx, cfg.STTLanguage)
		if err != nil {
			return fmt.Errorf("speech: %w", err)
		}
		c.onClose("speech", s.Close)
		speech = s
	}

	ingestOpts := services.IngestOptions{MaxBytes: cfg.MaxUploadBytes}
	if cfg.GCSBucket != "" {
		a, err := storage.NewGCSArchiver(ctx, cfg.GCSBucket)
		if err != nil {
			return fmt.Errorf("gcs: %w", err)
		}
		c.onClose("gcs", a.Close)
		ingestOpts.Archiver = a
	}
	if c.Redis != nil {
		ingestOpts.Queue = workers.NewRedisIngestQueue(c.Redis, cfg.IngestStream)
	}

	emb := embedding.NewEmbedder(embedder, cfg.EmbeddingDim, embedding.Options{
		Timeout:  cfg.EmbeddingTimeout,
		Interval: cfg.EmbeddingInterval,
		Retry:    policy,
		Logger:   c.Log,
	})
	chunker := rag.NewChunker(rag.ChunkOptions{
		MaxChars:         cfg.ChunkMaxChars,
		MinChars:         cfg.ChunkMinChars,
		OverlapSentences: cfg.ChunkOverlap,
	})
	composer := rag.NewComposer(generator, policy, cfg.LLMTimeout, c.Log)

	c.History = services.NewHistoryService(st.history, historyCache, services.HistoryOptions{
		TTL:      cfg.SessionTTL,
		Limit:    cfg.HistoryLimit,
		CacheTTL: cfg.HistoryCacheTTL,
	}, c.Log)
	c.Ingest = services.NewIngestService(st.chunks, chunker, emb, ingestOpts, c.Log)
	c.Chat = services.NewChatService(st.chunks, emb, composer, c.History, speech, cfg.TopK, c.Log)
	c.Consultations = services.NewConsultationService(st.consultations)
	return nil
}

func (c *Container) openStores(ctx context.Context) (stores, error) {
	cfg := c.Config
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("sqlite: %w", err)
		}
		c.onClose("sqlite", db.Close)
		return stores{
			chunks:        sqlite.NewChunkStore(db, cfg.EmbeddingDim),
			history:       sqlite.NewHistoryStore(db),
			consultations: sqlite.NewConsultationStore(db),
		}, nil

	case config.BackendPostgres:
		db, err := config.OpenPostgres(cfg.PostgresURI)
		if err != nil {
			return stores{}, fmt.Errorf("postgres: %w", err)
		}
		c.onClose("postgres", func() error { return config.ClosePostgres(db) })
		if err := postgres.Migrate(ctx, db); err != nil {
			return stores{}, fmt.Errorf("postgres migrate: %w", err)
		}
		return stores{
			chunks:        postgres.NewChunkRepo(db, cfg.EmbeddingDim),
			history:       postgres.NewHistoryRepo(db),
			consultations: postgres.NewConsultationRepo(db),
		}, nil

	default:
		c.Log.Warn("memory store selected: documents and sessions are lost on restart")
		return stores{
			chunks:        memory.NewChunkStore(cfg.EmbeddingDim),
			history:       memory.NewHistoryStore(),
			consultations: memory.NewConsultationStore(),
		}, nil
	}
}

func (c *Container) openMongoHistory(ctx context.Context) (repositories.HistoryStore, error) {
	client, err := config.OpenMongo(ctx, c.Config.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	c.onClose("mongo", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	})

	db := client.Database(c.Config.MongoDB)
	if err := config.EnsureMongoIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return mongorepo.NewHistoryRepo(db), nil
}
