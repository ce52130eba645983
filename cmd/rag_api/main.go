package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cymbalrag/internal/api"
	"cymbalrag/internal/config"
	"cymbalrag/internal/database/kafka"
	"cymbalrag/internal/database/milvus"
	"cymbalrag/internal/database/minio"
	"cymbalrag/internal/database/mongo"
	"cymbalrag/internal/database/redis"
	"cymbalrag/internal/docai"
	"cymbalrag/internal/events"
	"cymbalrag/internal/processor"
	"cymbalrag/internal/rag/embeddings"
	"cymbalrag/internal/rag/interfaces"
	"cymbalrag/internal/rag/llms"
	"cymbalrag/internal/rag/pipeline"
	"cymbalrag/internal/rag/rerankers"
	"cymbalrag/internal/rag/splitters"
	"cymbalrag/internal/rag/vectorstore"
	"cymbalrag/internal/registry"
	"cymbalrag/internal/service"
	"cymbalrag/internal/storage"
	"cymbalrag/pkg/locks"
	"cymbalrag/pkg/logger"
)

const (
	httpAddr        = ":8080"
	configPath      = "config/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Logger.Level)
	appLogger := logger.New(cfg.App.Name)
	appLogger.Info("Starting knowledge base service...")

	ctx := context.Background()

	// 3. Initialize Backing Stores
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	fileStore := registry.NewMongoFileStore(mongoClient.Database(cfg.Databases.MongoDB.Database))

	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	sessionStore := registry.NewRedisSessionStore(redisClient, cfg.SessionTTL())

	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}
	blobStore := storage.NewMinIOStore(minioClient, cfg.Databases.MinIO.Bucket)

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		log.Fatalf("Failed to connect to Milvus: %v", err)
	}
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to prepare Milvus collection: %v", err)
	}
	vectorStore, err := vectorstore.NewMilvusStore(milvusClient, appLogger)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}

	// 4. Initialize Model Clients
	docAI, err := docai.NewClient(ctx, cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.Model, cfg.Embedding.MaxRetries, appLogger)
	if err != nil {
		log.Fatalf("Failed to create document AI client: %v", err)
	}

	embedder, err := embeddings.NewGenaiEmbedder(ctx, cfg.Embedding.Gemini.APIKey, cfg.Embedding.Gemini.Model,
		cfg.Embedding.BatchSize, cfg.Embedding.MaxRetries)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	generationLLM, err := llms.NewGeminiLLM(ctx, cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.Model)
	if err != nil {
		log.Fatalf("Failed to create Gemini LLM client: %v", err)
	}

	var reranker interfaces.Reranker
	if cfg.Rerank.Cohere.APIKey != "" {
		reranker = rerankers.NewCohereReranker(cfg.Rerank.Cohere.APIKey, cfg.Rerank.Cohere.Model)
	} else {
		appLogger.Warn("Cohere API key not configured, search results keep vector order")
	}

	// 5. Assemble Pipelines
	splitter, err := splitters.NewWindowSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.MaxChunksPerDocument)
	if err != nil {
		log.Fatalf("Invalid chunking configuration: %v", err)
	}
	docProcessor := processor.New(docAI, cfg.Processing.MinPageTextLen, appLogger)

	ingestion := pipeline.NewIngestionPipeline(docProcessor, splitter, embedder, vectorStore,
		cfg.Embedding.BatchSize, appLogger)
	retrieval := pipeline.NewRetrievalPipeline(embedder, vectorStore, reranker, generationLLM, fileStore,
		cfg.Rerank.OverfetchFactor, cfg.RAG.MaxResults, cfg.RAG.SimilarityThreshold, cfg.RAG.MaxContextChars, appLogger)

	// 6. Optional Lifecycle Event Publisher
	var publisher *events.Publisher
	var kafkaClient *kafka.KafkaClient
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err = kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			log.Fatalf("Failed to connect to Kafka: %v", err)
		}
		publisher = events.NewPublisher(kafkaClient, appLogger)
	} else {
		appLogger.Info("Kafka disabled, lifecycle events are not published")
	}

	healthChecks := map[string]func(context.Context) error{
		"mongodb": mongo.HealthCheck,
		"redis":   redis.HealthCheck,
		"minio":   minio.HealthCheck,
		"milvus":  milvusClient.HealthCheck,
	}
	if kafkaClient != nil {
		healthChecks["kafka"] = kafkaClient.HealthCheck
	}

	// 7. Create the Knowledge Base Service
	kbService := service.New(cfg, fileStore, sessionStore, blobStore, docAI, ingestion, retrieval,
		locks.NewArena(cfg.LockWait()), publisher, healthChecks, appLogger)

	// 8. Start Gin HTTP Server
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = int64(cfg.Processing.MaxFileSizeMB) << 20
	router.Use(api.RequestTimeout(cfg.RequestTimeout()))
	api.RegisterRoutes(router, api.NewAPI(kbService, appLogger), cfg.Auth.Token)

	srv := &http.Server{Addr: httpAddr, Handler: router}
	go func() {
		appLogger.Info("HTTP server listening at " + httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("HTTP server shutdown failed")
	}

	if err := kafkaClient.Close(); err != nil {
		appLogger.WithError(err).Warn("Kafka close failed")
	}
	milvusClient.Close()
	if err := mongo.Close(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("MongoDB close failed")
	}
	if err := redis.Close(); err != nil {
		appLogger.WithError(err).Warn("Redis close failed")
	}

	appLogger.Info("Server gracefully stopped")
}
