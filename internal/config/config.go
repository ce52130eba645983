package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MilvusConfig holds the vector index connection and collection settings.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Collection string `yaml:"collection"`
	Dim        int    `yaml:"dim"`
}

// MinIOConfig holds the object storage connection settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// MongoConfig holds the file registry database settings.
type MongoConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig holds the validation session store settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig holds the lifecycle event publisher settings. Publishing is
// optional; when disabled the service runs without an event log.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// DatabaseConfigs groups all backing store configurations.
type DatabaseConfigs struct {
	Milvus  MilvusConfig `yaml:"milvus"`
	MinIO   MinIOConfig  `yaml:"minio"`
	MongoDB MongoConfig  `yaml:"mongodb"`
	Redis   RedisConfig  `yaml:"redis"`
	Kafka   KafkaConfig  `yaml:"kafka"`
}

// GeminiConfig holds credentials for a Gemini-backed model.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// LLMConfig configures the generation model.
type LLMConfig struct {
	Gemini GeminiConfig `yaml:"gemini"`
}

// EmbeddingConfig configures the embedding model and batch behavior.
type EmbeddingConfig struct {
	Gemini     GeminiConfig `yaml:"gemini"`
	BatchSize  int          `yaml:"batchSize"`
	MaxRetries int          `yaml:"maxRetries"`
}

// CohereConfig holds credentials for the Cohere rerank API.
type CohereConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// RerankConfig configures the reranking adapter.
type RerankConfig struct {
	Cohere          CohereConfig `yaml:"cohere"`
	OverfetchFactor int          `yaml:"overfetchFactor"`
}

// RAGConfig holds the chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize            int     `yaml:"chunkSize"`
	ChunkOverlap         int     `yaml:"chunkOverlap"`
	MaxChunksPerDocument int     `yaml:"maxChunksPerDocument"`
	SimilarityThreshold  float64 `yaml:"similarityThreshold"`
	MaxResults           int     `yaml:"maxResults"`
	MaxContextChars      int     `yaml:"maxContextChars"`
}

// ProcessingConfig holds document processing limits.
type ProcessingConfig struct {
	MaxFileSizeMB  int `yaml:"maxFileSizeMB"`
	MinPageTextLen int `yaml:"minPageTextLen"`
	// SessionTTLSeconds bounds how long a validation session stays promotable.
	SessionTTLSeconds int `yaml:"sessionTTLSeconds"`
	// RequestTimeoutSeconds bounds every external-service call.
	RequestTimeoutSeconds int `yaml:"requestTimeoutSeconds"`
	// LockWaitMillis bounds how long an upload waits on a contended filename
	// before failing with a busy signal.
	LockWaitMillis int `yaml:"lockWaitMillis"`
}

// AppInfo describes the running application.
type AppInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// AuthConfig holds the static API token checked on every request.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// LoggerConfig configures log output.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root of the YAML configuration file. It is loaded once in
// main and handed to each component; pipeline code never reads the
// environment directly.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Auth       AuthConfig       `yaml:"auth"`
	Logger     LoggerConfig     `yaml:"logger"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Rerank     RerankConfig     `yaml:"rerank"`
	RAG        RAGConfig        `yaml:"rag"`
	Processing ProcessingConfig `yaml:"processing"`
}

// LoadConfig reads and parses the YAML configuration file at path, applying
// defaults for optional tuning knobs.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file '%s': %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.RAG.MaxChunksPerDocument == 0 {
		c.RAG.MaxChunksPerDocument = 50
	}
	if c.RAG.SimilarityThreshold == 0 {
		c.RAG.SimilarityThreshold = 0.7
	}
	if c.RAG.MaxResults == 0 {
		c.RAG.MaxResults = 10
	}
	if c.RAG.MaxContextChars == 0 {
		c.RAG.MaxContextChars = 12000
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 16
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Rerank.OverfetchFactor == 0 {
		c.Rerank.OverfetchFactor = 3
	}
	if c.Processing.MaxFileSizeMB == 0 {
		c.Processing.MaxFileSizeMB = 10
	}
	if c.Processing.MinPageTextLen == 0 {
		c.Processing.MinPageTextLen = 20
	}
	if c.Processing.SessionTTLSeconds == 0 {
		c.Processing.SessionTTLSeconds = 3600
	}
	if c.Processing.RequestTimeoutSeconds == 0 {
		c.Processing.RequestTimeoutSeconds = 60
	}
	if c.Processing.LockWaitMillis == 0 {
		c.Processing.LockWaitMillis = 500
	}
}

// RequestTimeout returns the bound applied to every external-service call.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Processing.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns the validation session lifetime.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Processing.SessionTTLSeconds) * time.Second
}

// LockWait returns the bounded wait for a contended filename lock.
func (c *AppConfig) LockWait() time.Duration {
	return time.Duration(c.Processing.LockWaitMillis) * time.Millisecond
}
