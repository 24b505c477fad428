package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/config"
	"github.com/kailas-cloud/lawrag/internal/db"
	dbRedis "github.com/kailas-cloud/lawrag/internal/db/redis"
	"github.com/kailas-cloud/lawrag/internal/domain"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	logpkg "github.com/kailas-cloud/lawrag/internal/logger"
	"github.com/kailas-cloud/lawrag/internal/metrics"
	articlerepo "github.com/kailas-cloud/lawrag/internal/repository/article"
	balancerepo "github.com/kailas-cloud/lawrag/internal/repository/balance"
	"github.com/kailas-cloud/lawrag/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/lawrag/internal/transport/chi"
	"github.com/kailas-cloud/lawrag/internal/transport/extract"
	openaiTransport "github.com/kailas-cloud/lawrag/internal/transport/openai"
	"github.com/kailas-cloud/lawrag/internal/usecase/accounting"
	"github.com/kailas-cloud/lawrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/lawrag/internal/usecase/embedding"
	"github.com/kailas-cloud/lawrag/internal/usecase/expand"
	healthuc "github.com/kailas-cloud/lawrag/internal/usecase/health"
	"github.com/kailas-cloud/lawrag/internal/usecase/orchestrator"
	"github.com/kailas-cloud/lawrag/internal/version"
)

// balanceBook is what the composition root needs from either accounting backend.
type balanceBook interface {
	orchestrator.Accounting
	orchestrator.Refunder
	chiTransport.Balances
}

var (
	_ balanceBook = (*balancerepo.Store)(nil)
	_ balanceBook = (*accounting.Ledger)(nil)
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, zap.String("service", "lawrag"))
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		ClientName: "lawrag",
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	metrics.RegisterAskMetrics()

	// Providers
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIType:    cfg.Embedding.Provider.Type,
		APIKey:     cfg.Embedding.Provider.APIKey,
		BaseURL:    cfg.Embedding.Provider.BaseURL,
		APIVersion: cfg.Embedding.Provider.APIVersion,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider.Name,
		Logger:     logger,
	})
	queryEmbedder := buildEmbedder(baseEmbedder, &cfg, store, logger)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIType:     cfg.Generation.Provider.Type,
		APIKey:      cfg.Generation.Provider.APIKey,
		BaseURL:     cfg.Generation.Provider.BaseURL,
		APIVersion:  cfg.Generation.Provider.APIVersion,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Logger:      logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_provider", cfg.Embedding.Provider.Name),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("generation_provider", cfg.Generation.Provider.Name),
		zap.String("generation_model", cfg.Generation.Model),
	)

	if cfg.Embedding.WarmUp {
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := baseEmbedder.EnsureReady(warmCtx); err != nil {
			logger.Warn("Embedding warm-up failed, retrying on first request", zap.Error(err))
		}
		cancel()
	}

	// Repositories
	articles := articlerepo.New(store, articlerepo.Config{
		Prefix:     cfg.Storage.KeyPrefix,
		Dimensions: cfg.Embedding.Dimensions,
		HNSW: articlerepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
		EFRuntime: cfg.Index.HNSWEFRuntime,
	})
	logPartitions(ctx, articles, logger)

	costs, err := cfg.Costs.Matrix()
	if err != nil {
		logger.Fatal("Invalid cost matrix", zap.Error(err))
	}

	// Pass nil interfaces (not typed nil pointers) when accounting is disabled.
	var (
		book     orchestrator.Accounting
		balances chiTransport.Balances
	)
	if cfg.Accounting.Enabled {
		b := buildBalanceBook(&cfg, store)
		book, balances = b, b
		logger.Info("Accounting enabled",
			zap.String("backend", cfg.Accounting.Backend),
			zap.Int64("initial_balance", cfg.Accounting.InitialBalance),
		)
	}

	// Use case services
	expander := expand.New(generator, expand.Config{
		CacheSize: cfg.ExpansionCache.Size,
		CacheTTL:  time.Duration(cfg.ExpansionCache.TTLSec) * time.Second,
		Retries:   cfg.ExpansionCache.Retries,
	}, logger)
	answerer := answer.New(generator, answer.Config{
		ValidateCitations: cfg.Answer.ValidateCitations,
	}, logger)
	extractor := extract.New(&http.Client{}, generator, extract.Config{
		MaxDocumentBytes: int64(cfg.Extraction.MaxDocumentMB) << 20,
		MaxImageBytes:    int64(cfg.Extraction.MaxImageMB) << 20,
		MaxTextChars:     cfg.Extraction.MaxTextChars,
		DownloadTimeout:  time.Duration(cfg.Extraction.DownloadTimeoutSec) * time.Second,
	}, logger)

	asker := orchestrator.New(orchestrator.Deps{
		Extractor:  extractor,
		Expander:   expander,
		Embedder:   queryEmbedder,
		Store:      articles,
		Answerer:   answerer,
		Accounting: book,
		Costs:      costs,
	}, orchestrator.Config{
		TopK:              cfg.Retrieval.TopK,
		Expansions:        cfg.Retrieval.Expansions,
		MaxArticles:       cfg.Retrieval.MaxArticles,
		MaxParagraphs:     cfg.Retrieval.MaxParagraphs,
		MaxRawHits:        cfg.Retrieval.MaxRawHits,
		SearchConcurrency: cfg.Retrieval.SearchConcurrency,
		ExpandConcurrency: cfg.Retrieval.ExpandConcurrency,
		RequestTimeout:    time.Duration(cfg.Retrieval.RequestTimeoutSec) * time.Second,
	}, logger)

	healthSvc := healthuc.New(store, baseEmbedder, generator)

	server := chiTransport.NewServer(asker, balances, healthSvc, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the query-side decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(base domain.Embedder, cfg *config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	embedder := base

	// Cached (negative TTL disables the cache)
	if cfg.Embedding.CacheTTLSec >= 0 {
		embedder = embcache.New(base, store, embcache.Config{
			Prefix: cfg.Storage.KeyPrefix,
			Model:  cfg.Embedding.Model,
			TTL:    time.Duration(cfg.Embedding.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider.Name, cfg.Embedding.Model, cfg.Embedding.BatchSize, logger,
	)

	// Instruction prefix (outermost, cache key includes instruction)
	if cfg.Embedding.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}
	return embedder
}

func buildBalanceBook(cfg *config.Config, store db.Store) balanceBook {
	if cfg.Accounting.Backend == "memory" {
		return accounting.NewLedger(cfg.Accounting.InitialBalance)
	}
	return balancerepo.New(store, cfg.Storage.KeyPrefix, cfg.Accounting.InitialBalance)
}

// logPartitions reports the corpus size per language; an empty partition is not fatal.
func logPartitions(ctx context.Context, articles *articlerepo.Repo, logger *zap.Logger) {
	for _, lang := range language.All() {
		n, err := articles.Count(ctx, lang)
		if err != nil {
			logger.Warn("Corpus partition unavailable", zap.String("language", lang.String()), zap.Error(err))
			continue
		}
		logger.Info("Corpus partition", zap.String("language", lang.String()), zap.Int("articles", n))
	}
}
