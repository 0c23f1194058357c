package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	RetrievalTopK           int     `envconfig:"RETRIEVAL_TOP_K" default:"8"`
	RetrievalMinSimilarity  float64 `envconfig:"RETRIEVAL_MIN_SIMILARITY" default:"0.6"`
	CopilotMaxSteps         int     `envconfig:"COPILOT_MAX_STEPS" default:"5"`
	IngestAdditive          bool    `envconfig:"INGEST_ADDITIVE" default:"false"`
	SessionSweepIntervalSec int     `envconfig:"SESSION_SWEEP_INTERVAL_SEC" default:"300"`

	// AnonOwnerID, when set, lets unauthenticated requests operate on a
	// shared knowledge base under this owner. Local testing only; empty
	// disables anonymous access entirely.
	AnonOwnerID string `envconfig:"ANON_OWNER_ID"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) AllowAnonymous() bool {
	return c.AnonOwnerID != ""
}
