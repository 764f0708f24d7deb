package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string          `mapstructure:"port"`
	UploadDir      string          `mapstructure:"upload_dir"`
	AIEndpoint     string          `mapstructure:"ai_endpoint"`
	Model          string          `mapstructure:"model"`
	OpenAIAPIKey   string          `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey   string          `mapstructure:"GEMINI_API_KEY"`
	MongoURI       string          `mapstructure:"MONGODB_URI"`
	Chunking       ChunkingConfig  `mapstructure:"chunking"`
	Embedding      EmbeddingConfig `mapstructure:"embedding"`
	Retrieval      RetrievalConfig `mapstructure:"retrieval"`
	WeaviateConfig WeaviateConfig  `mapstructure:"weaviate"`
}

type ChunkingConfig struct {
	MaxChunkSize int `mapstructure:"max_chunk_size"`
	OverlapSize  int `mapstructure:"overlap_size"`
}

type EmbeddingConfig struct {
	Provider     string        `mapstructure:"provider"` // "openai" or "gemini"
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchDelay   time.Duration `mapstructure:"batch_delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffFloor time.Duration `mapstructure:"backoff_floor"`
}

type RetrievalConfig struct {
	TopK          int `mapstructure:"top_k"`
	ContextWindow int `mapstructure:"context_window"`
	PreviewLength int `mapstructure:"preview_length"`
}

type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set up Viper to read from config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file. A missing file is fine: defaults and environment
	// variables cover a full configuration.
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Bind environment variables
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("GEMINI_API_KEY")
	v.BindEnv("MONGODB_URI")
	v.BindEnv("weaviate.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("chunking.max_chunk_size", 2000)
	v.SetDefault("chunking.overlap_size", 200)
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 16)
	v.SetDefault("embedding.batch_delay", 500*time.Millisecond)
	v.SetDefault("embedding.max_retries", 5)
	v.SetDefault("embedding.backoff_floor", 60*time.Second)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.context_window", 1)
	v.SetDefault("retrieval.preview_length", 200)
}
