package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"ReckonAssist/internal/analytics"
	"ReckonAssist/internal/api"
	"ReckonAssist/internal/config"
	"ReckonAssist/internal/database/milvus"
	redisdb "ReckonAssist/internal/database/redis"
	"ReckonAssist/internal/rag/cache"
	"ReckonAssist/internal/rag/chunker"
	"ReckonAssist/internal/rag/docstore"
	"ReckonAssist/internal/rag/embeddings"
	"ReckonAssist/internal/rag/generation"
	"ReckonAssist/internal/rag/interfaces"
	"ReckonAssist/internal/rag/pipeline"
	"ReckonAssist/internal/rag/retrieval"
	"ReckonAssist/internal/rag/vectorstore"
	"ReckonAssist/pkg/logger"
)

func main() {
	// Secrets come from the environment; .env is a local convenience.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logrus.InfoLevel
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logLevel = lvl
	}
	logger.Init(logLevel)
	serviceLogger := logger.New("SupportService", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vector store is the one hard dependency; everything else degrades.
	milvusClient, err := milvus.Connect(ctx, &cfg.Milvus, serviceLogger)
	if err != nil {
		serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Fatal("Failed to connect to Milvus")
	}
	serviceLogger.Info("Successfully connected to Milvus")

	store, err := vectorstore.NewMilvusStore(milvusClient, serviceLogger)
	if err != nil {
		serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Fatal("Failed to initialize vector store")
	}

	provider := embeddings.NewProvider(
		buildEmbeddingModel(cfg, serviceLogger),
		cfg.Embedding.Dimension,
		cfg.Embedding.ContextLength,
		serviceLogger,
	)

	llm, modelName, baseConfidence, llmCloser := buildLLM(ctx, cfg, serviceLogger)
	generator := generation.NewAnswerGenerator(llm, modelName, baseConfidence, serviceLogger)

	var queryLogger interfaces.QueryLogger
	var kafkaPublisher *analytics.QueryLogPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher = analytics.NewQueryLogPublisher(&cfg.Kafka)
		queryLogger = kafkaPublisher
		serviceLogger.Info("Query log publisher enabled on topic " + cfg.Kafka.Topic)
	}

	var answerCache interfaces.AnswerCache
	if cfg.Redis.Enabled {
		rdb, err := redisdb.Connect(ctx, &cfg.Redis)
		if err != nil {
			serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Warn("Redis unavailable, answer cache disabled")
		} else {
			ttl := config.ParseDuration(cfg.Redis.TTL, 10*time.Minute)
			answerCache = cache.NewRedisAnswerCache(rdb, ttl, serviceLogger)
			defer rdb.Close()
		}
	}

	docs := docstore.NewStore()
	indexing := pipeline.NewIndexingPipeline(
		chunker.New(),
		provider,
		store,
		docs,
		milvusClient,
		pipeline.IndexingOptions{
			Namespace:      cfg.RAG.Namespace,
			ChunkSize:      cfg.RAG.ChunkSize,
			ChunkOverlap:   cfg.RAG.ChunkOverlap,
			Workers:        cfg.RAG.IngestWorkers,
			EmbedRateLimit: cfg.RAG.EmbedRateLimit,
		},
		serviceLogger,
	)

	engine := retrieval.NewEngine(provider, store, cfg.RAG.Namespace, retrieval.Options{
		TopK:           cfg.RAG.TopK,
		MinSimilarity:  cfg.RAG.MinSimilarity,
		Hybrid:         cfg.RAG.HybridSearch,
		SemanticWeight: cfg.RAG.SemanticWeight,
		TextWeight:     cfg.RAG.TextWeight,
		EmbedTimeout:   config.ParseDuration(cfg.RAG.Timeouts.Embed, 30*time.Second),
		SearchTimeout:  config.ParseDuration(cfg.RAG.Timeouts.Search, 10*time.Second),
	}, serviceLogger)

	query := pipeline.NewQueryPipeline(engine, generator, queryLogger, answerCache, pipeline.QueryOptions{
		GenerateTimeout: config.ParseDuration(cfg.RAG.Timeouts.Generate, 45*time.Second),
		MaxContextChars: cfg.RAG.MaxContextChars,
	}, serviceLogger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler := api.NewAPI(indexing, query, milvusClient, serviceLogger)
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Error("Server forced to shutdown")
	}

	cancel()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Error("Error closing Kafka publisher")
		}
	}
	if llmCloser != nil {
		if err := llmCloser(); err != nil {
			serviceLogger.WithPayload(map[string]interface{}{"error": err.Error()}).Error("Error closing LLM client")
		}
	}
	milvusClient.Close()

	serviceLogger.Info("Server gracefully stopped")
}

// buildEmbeddingModel constructs the configured remote embedding backend.
// A nil return means the provider runs on the deterministic local fallback
// only, which keeps the service answering when no embedding API is set up.
func buildEmbeddingModel(cfg *config.AppConfig, log *logger.Logger) interfaces.EmbeddingModel {
	switch cfg.Embedding.Provider {
	case "huggingface":
		if cfg.Embedding.HuggingFace.APIKey == "" {
			log.Warn("No HuggingFace API key configured, using fallback embeddings")
			return nil
		}
		model, err := embeddings.NewHuggingFaceModel(
			cfg.Embedding.HuggingFace.APIKey,
			cfg.Embedding.HuggingFace.Model,
			cfg.Embedding.HuggingFace.BaseURL,
		)
		if err != nil {
			log.WithPayload(map[string]interface{}{"error": err.Error()}).Warn("HuggingFace client init failed, using fallback embeddings")
			return nil
		}
		return model
	case "ollama":
		model, err := embeddings.NewOllamaModel(cfg.Embedding.Ollama.Model, cfg.Embedding.Ollama.BaseURL)
		if err != nil {
			log.WithPayload(map[string]interface{}{"error": err.Error()}).Warn("Ollama client init failed, using fallback embeddings")
			return nil
		}
		return model
	default:
		log.Warn("Unknown embedding provider " + cfg.Embedding.Provider + ", using fallback embeddings")
		return nil
	}
}

// buildLLM constructs the configured generation backend. A nil LLM makes
// the generator serve canned fallback answers instead of crashing the
// service at startup.
func buildLLM(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (interfaces.LLM, string, float64, func() error) {
	switch cfg.LLM.Provider {
	case "gemini":
		if cfg.LLM.Gemini.APIKey == "" {
			log.Warn("No Gemini API key configured, serving fallback answers")
			return nil, cfg.LLM.Gemini.Model, 0.8, nil
		}
		client, err := generation.NewGemini(ctx, cfg.LLM.Gemini.Model, cfg.LLM.Gemini.APIKey)
		if err != nil {
			log.WithPayload(map[string]interface{}{"error": err.Error()}).Warn("Gemini client init failed, serving fallback answers")
			return nil, cfg.LLM.Gemini.Model, 0.8, nil
		}
		return client, client.ModelName(), 0.8, client.Close
	case "openai":
		if cfg.LLM.OpenAI.APIKey == "" {
			log.Warn("No OpenAI API key configured, serving fallback answers")
			return nil, cfg.LLM.OpenAI.Model, 0.7, nil
		}
		client, err := generation.NewOpenAI(cfg.LLM.OpenAI.Model, cfg.LLM.OpenAI.APIKey)
		if err != nil {
			log.WithPayload(map[string]interface{}{"error": err.Error()}).Warn("OpenAI client init failed, serving fallback answers")
			return nil, cfg.LLM.OpenAI.Model, 0.7, nil
		}
		return client, client.ModelName(), 0.7, nil
	default:
		log.Warn("Unknown LLM provider " + cfg.LLM.Provider + ", serving fallback answers")
		return nil, cfg.LLM.Provider, 0.8, nil
	}
}
