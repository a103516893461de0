package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/config"
	"github.com/kailas-cloud/crag/internal/db"
	dbBolt "github.com/kailas-cloud/crag/internal/db/bolt"
	dbMemory "github.com/kailas-cloud/crag/internal/db/memory"
	dbRedis "github.com/kailas-cloud/crag/internal/db/redis"
	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/metrics"
	"github.com/kailas-cloud/crag/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/crag/internal/transport/openai"
	"github.com/kailas-cloud/crag/internal/transport/pdf"
	"github.com/kailas-cloud/crag/internal/transport/websearch"
	embeddinguc "github.com/kailas-cloud/crag/internal/usecase/embedding"
	generationuc "github.com/kailas-cloud/crag/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/crag/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/crag/internal/usecase/pipeline"
)

const (
	memoryCleanupInterval = 10 * time.Minute
	redisWriteTimeout     = 10 * time.Second
)

// app is the composition root shared by serve and ask.
type app struct {
	pipeline  *pipelineuc.Service
	health    *healthuc.Service
	extractor *pdf.Extractor
	store     db.Store
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	// Register capability metrics explicitly (no init())
	metrics.Register()

	store, err := openCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	docEmbedder := buildEmbedder(cfg, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(cfg, cfg.Embedding.QueryInstruction, store, logger)
	generator := buildGenerator(cfg, logger)
	searcher := websearch.NewClient(&websearch.Config{
		APIKey:      cfg.Search.APIKey,
		BaseURL:     cfg.Search.BaseURL,
		MaxResults:  cfg.Search.MaxResults,
		SearchDepth: cfg.Search.SearchDepth,
		Timeout:     time.Duration(cfg.Search.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	pipeline, err := pipelineuc.New(pipelineuc.Capabilities{
		Embedder:      docEmbedder,
		QueryEmbedder: queryEmbedder,
		Generator:     generator,
		Searcher:      searcher,
	}, cfg.PipelineDefaults(), logger)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	var pinger healthuc.Pinger
	if store != nil {
		pinger = store
	}
	health := healthuc.New(pinger).
		With(healthuc.ComponentEmbedding, healthCheckerOf(docEmbedder)).
		With(healthuc.ComponentGeneration, healthCheckerOf(generator)).
		With(healthuc.ComponentSearch, searcher)

	logger.Info("Pipeline ready",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
		zap.String("cache", cfg.Cache.Backend),
	)

	return &app{
		pipeline:  pipeline,
		health:    health,
		extractor: pdf.NewExtractor(int64(cfg.Upload.MaxFileMB)<<20, logger),
		store:     store,
	}, nil
}

// openCache returns nil for the "none" backend.
func openCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return dbMemory.NewStore(cfg.CacheTTL(), memoryCleanupInterval), nil
	case config.CacheBolt:
		store, err := dbBolt.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open bolt cache: %w", err)
		}
		if n, err := store.Purge(ctx); err != nil {
			logger.Warn("Failed to purge expired cache entries", zap.Error(err))
		} else if n > 0 {
			logger.Info("Purged expired cache entries", zap.Int("count", n))
		}
		return store, nil
	case config.CacheRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			// большие батчи векторов
			WriteTimeout: redisWriteTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis cache not ready: %w", err)
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(cfg config.Config, instruction string, store db.Store, logger *zap.Logger) domain.Embedder {
	e := cfg.Embedding

	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Model:      e.Model,
		Dimensions: e.Dimensions,
		Provider:   e.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		namespace := fmt.Sprintf("%s:%s:%d", e.Provider, e.Model, e.Dimensions)
		embedder = embcache.New(base, db.Expiring(store, cfg.CacheTTL()), namespace,
			metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Provider, e.Model, logger).
		WithMaxBatchSize(e.MaxBatchSize)

	// Instruction prefix (outermost, cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// buildGenerator assembles OpenAI -> Retrying -> Instrumented.
func buildGenerator(cfg config.Config, logger *zap.Logger) domain.Generator {
	g := cfg.Generation

	base := openaiTransport.NewGenerator(&openaiTransport.Config{
		APIKey:      g.APIKey,
		BaseURL:     g.BaseURL,
		Model:       g.Model,
		Provider:    g.Provider,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
		Logger:      logger,
	})

	retrying := generationuc.NewRetryingGenerator(base, g.Provider, logger).
		WithPolicy(g.MaxAttempts, time.Duration(g.BackoffMs)*time.Millisecond)

	return generationuc.NewInstrumentedGenerator(retrying, g.Provider, g.Model, logger)
}

// healthCheckerOf returns v as a checker when it supports health checks.
func healthCheckerOf(v any) healthuc.Checker {
	if hc, ok := v.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
