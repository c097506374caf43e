package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP listen settings.
type ServerConfig struct {
	HTTPAddr string `yaml:"httpAddr"` // e.g. ":8080"
}

// MilvusConfig holds the Milvus connection and collection settings.
type MilvusConfig struct {
	Address        string `yaml:"address"`        // Milvus endpoint, e.g. "localhost:19530"
	CollectionName string `yaml:"collectionName"` // collection backing the knowledge base
	Dimension      int    `yaml:"dimension"`      // vector dimension of the collection
}

// RedisConfig holds the Redis connection settings for the answer cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"` // cache entry lifetime, e.g. "10m"
}

// KafkaConfig holds the Kafka settings for the analytics publisher.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HuggingFaceConfig configures the HuggingFace Inference API embedding client.
type HuggingFaceConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`   // e.g. "BAAI/bge-large-en-v1.5"
	BaseURL string `yaml:"baseURL"` // override for testing; empty uses the public API
}

// OllamaConfig configures a local Ollama embedding model.
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider      string            `yaml:"provider"` // "huggingface" or "ollama"
	Dimension     int               `yaml:"dimension"`
	ContextLength int               `yaml:"contextLength"` // character budget before truncation
	HuggingFace   HuggingFaceConfig `yaml:"huggingface"`
	Ollama        OllamaConfig      `yaml:"ollama"`
}

// GeminiConfig configures the Gemini generation client.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"` // e.g. "gemini-1.5-flash"
}

// OpenAIConfig configures an OpenAI-compatible generation client.
type OpenAIConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"` // e.g. "gpt-3.5-turbo"
}

// LLMConfig selects and configures the generation provider.
type LLMConfig struct {
	Provider string       `yaml:"provider"` // "gemini" or "openai"
	Gemini   GeminiConfig `yaml:"gemini"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// TimeoutConfig bounds each blocking call on the query path.
type TimeoutConfig struct {
	Embed    string `yaml:"embed"`    // e.g. "30s"
	Search   string `yaml:"search"`   // e.g. "10s"
	Generate string `yaml:"generate"` // e.g. "45s"
}

// RAGConfig holds the tuning knobs of the retrieval pipeline. The similarity
// threshold and hybrid weights are empirical values inherited from the
// production deployment; they are configuration, not constants.
type RAGConfig struct {
	Namespace       string        `yaml:"namespace"`       // logical partition, e.g. "reckon-knowledge-base"
	ChunkSize       int           `yaml:"chunkSize"`       // default 1000
	ChunkOverlap    int           `yaml:"chunkOverlap"`    // default 200
	TopK            int           `yaml:"topK"`            // default 5
	MinSimilarity   float64       `yaml:"minSimilarity"`   // default 0.15
	HybridSearch    bool          `yaml:"hybridSearch"`    // enable the keyword blend pass
	SemanticWeight  float64       `yaml:"semanticWeight"`  // default 0.7
	TextWeight      float64       `yaml:"textWeight"`      // default 0.3
	MaxContextChars int           `yaml:"maxContextChars"` // default 24000
	IngestWorkers   int           `yaml:"ingestWorkers"`   // default 10
	EmbedRateLimit  float64       `yaml:"embedRateLimit"`  // remote embed calls per second, default 5
	Timeouts        TimeoutConfig `yaml:"timeouts"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Milvus    MilvusConfig    `yaml:"milvus"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	RAG       RAGConfig       `yaml:"rag"`
}

// LoadConfig reads and parses the yaml configuration file, fills in
// defaults, and resolves secrets from the environment when the file leaves
// them empty.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Milvus.CollectionName == "" {
		c.Milvus.CollectionName = "support_knowledge"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 1024
	}
	if c.Milvus.Dimension == 0 {
		c.Milvus.Dimension = c.Embedding.Dimension
	}
	if c.Embedding.ContextLength == 0 {
		c.Embedding.ContextLength = 512
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "huggingface"
	}
	if c.Embedding.HuggingFace.Model == "" {
		c.Embedding.HuggingFace.Model = "BAAI/bge-large-en-v1.5"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Gemini.Model == "" {
		c.LLM.Gemini.Model = "gemini-1.5-flash"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-3.5-turbo"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "support_query_logs"
	}
	if c.RAG.Namespace == "" {
		c.RAG.Namespace = "reckon-knowledge-base"
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MinSimilarity == 0 {
		c.RAG.MinSimilarity = 0.15
	}
	if c.RAG.SemanticWeight == 0 {
		c.RAG.SemanticWeight = 0.7
	}
	if c.RAG.TextWeight == 0 {
		c.RAG.TextWeight = 0.3
	}
	if c.RAG.MaxContextChars == 0 {
		c.RAG.MaxContextChars = 24000
	}
	if c.RAG.IngestWorkers == 0 {
		c.RAG.IngestWorkers = 10
	}
	if c.RAG.EmbedRateLimit == 0 {
		c.RAG.EmbedRateLimit = 5
	}
	if c.RAG.Timeouts.Embed == "" {
		c.RAG.Timeouts.Embed = "30s"
	}
	if c.RAG.Timeouts.Search == "" {
		c.RAG.Timeouts.Search = "10s"
	}
	if c.RAG.Timeouts.Generate == "" {
		c.RAG.Timeouts.Generate = "45s"
	}
	if c.Redis.TTL == "" {
		c.Redis.TTL = "10m"
	}
}

// applyEnvOverrides lets deployments keep secrets out of the config file.
func (c *AppConfig) applyEnvOverrides() {
	if v := os.Getenv("HUGGINGFACE_API_TOKEN"); v != "" {
		c.Embedding.HuggingFace.APIKey = v
	}
	if v := os.Getenv("GOOGLE_GEMINI_API_KEY"); v != "" {
		c.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAI.APIKey = v
	}
}

// ParseDuration converts a config duration string, falling back to the
// given default when the string is empty or malformed.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
