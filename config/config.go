// Package config assembles the application configuration: a YAML file
// with ${VAR} expansion, optional .env loading, and environment-variable
// overrides for secrets. Every section carries its own defaults and
// validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nhdandz/TSBot/cache"
	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/embedder"
	"github.com/nhdandz/TSBot/llm"
	"github.com/nhdandz/TSBot/rag"
	"github.com/nhdandz/TSBot/router"
	"github.com/nhdandz/TSBot/sqlagent"
	"github.com/nhdandz/TSBot/supervisor"
)

// Provider names accepted by the LLM and embedding sections.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// AppConfig names the instance and its operational surface.
type AppConfig struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// SetDefaults fills missing settings.
func (c *AppConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "tsbot"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LLMConfig selects and configures a generation provider.
type LLMConfig struct {
	Provider string           `yaml:"provider"`
	Ollama   llm.OllamaConfig `yaml:"ollama"`
	OpenAI   llm.OpenAIConfig `yaml:"openai"`
}

// SetDefaults fills missing settings.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	c.Ollama.SetDefaults()
	c.OpenAI.SetDefaults()
}

// Validate rejects unknown providers.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
		return nil
	default:
		return fmt.Errorf("unknown llm provider %q (supported: ollama, openai)", c.Provider)
	}
}

// Build constructs the configured provider.
func (c *LLMConfig) Build() (llm.LLM, error) {
	switch c.Provider {
	case ProviderOllama:
		return llm.NewOllamaLLM(c.Ollama), nil
	case ProviderOpenAI:
		return llm.NewOpenAILLM(c.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

// EmbeddingConfig selects and configures an embedding provider.
type EmbeddingConfig struct {
	Provider string                `yaml:"provider"`
	Ollama   embedder.OllamaConfig `yaml:"ollama"`
	OpenAI   embedder.OpenAIConfig `yaml:"openai"`
}

// SetDefaults fills missing settings. The production model is served
// behind an OpenAI-compatible endpoint, so that is the default provider.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	c.Ollama.SetDefaults()
	c.OpenAI.SetDefaults()
}

// Validate rejects unknown providers.
func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
		return nil
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: ollama, openai)", c.Provider)
	}
}

// Build constructs the configured provider.
func (c *EmbeddingConfig) Build() (embedder.Embedder, error) {
	switch c.Provider {
	case ProviderOllama:
		return embedder.NewOllamaEmbedder(c.Ollama), nil
	case ProviderOpenAI:
		return embedder.NewOpenAIEmbedder(c.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.Provider)
	}
}

// CacheConfig is the YAML shape of the semantic cache settings.
type CacheConfig struct {
	Threshold  float64 `yaml:"threshold"`
	TTLHours   int     `yaml:"ttl_hours"`
	MaxEntries int     `yaml:"max_entries"`
}

// ToCache converts to the cache package's config.
func (c CacheConfig) ToCache() cache.Config {
	return cache.Config{
		Threshold:  c.Threshold,
		TTL:        time.Duration(c.TTLHours) * time.Hour,
		MaxEntries: c.MaxEntries,
	}
}

// RouterConfig is the YAML shape of the semantic router settings.
type RouterConfig struct {
	Threshold  float64 `yaml:"threshold"`
	Collection string  `yaml:"collection"`
	MirrorToDB bool    `yaml:"mirror_to_db"`
}

// ToRouter converts to the router package's config.
func (c RouterConfig) ToRouter() router.Config {
	return router.Config{
		Threshold:  c.Threshold,
		Collection: c.Collection,
		MirrorToDB: c.MirrorToDB,
	}
}

// SessionConfig configures the transcript store.
type SessionConfig struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// SetDefaults fills missing settings.
func (c *SessionConfig) SetDefaults() {
	if c.Dialect == "" {
		c.Dialect = "sqlite"
	}
	if c.DSN == "" && (c.Dialect == "sqlite" || c.Dialect == "sqlite3") {
		c.DSN = "tsbot.db"
	}
}

// Validate rejects unknown dialects.
func (c *SessionConfig) Validate() error {
	switch c.Dialect {
	case "postgres", "mysql", "sqlite", "sqlite3":
		return nil
	default:
		return fmt.Errorf("unknown session dialect %q (supported: postgres, mysql, sqlite)", c.Dialect)
	}
}

// DriverName maps the dialect to its database/sql driver.
func (c *SessionConfig) DriverName() string {
	if c.Dialect == "sqlite" || c.Dialect == "sqlite3" {
		return "sqlite3"
	}
	return c.Dialect
}

// PathsConfig locates the ingestion inputs.
type PathsConfig struct {
	Chunks      string `yaml:"chunks"`
	Intents     string `yaml:"intents"`
	SQLExamples string `yaml:"sql_examples"`
}

// Config is the application root.
type Config struct {
	App        AppConfig                  `yaml:"app"`
	Postgres   databases.PostgresConfig   `yaml:"postgres"`
	Qdrant     databases.QdrantConfig     `yaml:"qdrant"`
	LLM        LLMConfig                  `yaml:"llm"`
	Grader     LLMConfig                  `yaml:"grader"`
	Embedding  EmbeddingConfig            `yaml:"embedding"`
	Reranker   rag.HTTPCrossEncoderConfig `yaml:"reranker"`
	RAG        rag.Config                 `yaml:"rag"`
	Cache      CacheConfig                `yaml:"cache"`
	SQLAgent   sqlagent.Config            `yaml:"sql_agent"`
	Router     RouterConfig               `yaml:"router"`
	Session    SessionConfig              `yaml:"session"`
	Supervisor supervisor.Config          `yaml:"supervisor"`
	Paths      PathsConfig                `yaml:"paths"`
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.App.SetDefaults()
	c.Postgres.SetDefaults()
	c.Qdrant.SetDefaults()

	c.LLM.SetDefaults()
	if c.LLM.Ollama.Temperature == 0 {
		c.LLM.Ollama.Temperature = 0.1
	}
	if c.LLM.Ollama.TopP == 0 {
		c.LLM.Ollama.TopP = 0.9
	}

	// The grader is the smaller deterministic variant.
	if c.Grader.Ollama.Model == "" {
		c.Grader.Ollama.Model = "qwen2.5:1.5b"
	}
	c.Grader.SetDefaults()

	c.Embedding.SetDefaults()
	c.Reranker.SetDefaults()
	c.RAG.SetDefaults()
	c.SQLAgent.SetDefaults()
	c.Session.SetDefaults()
	c.Supervisor.SetDefaults()
}

// Validate checks every section that can reject its settings.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Grader.Validate(); err != nil {
		return fmt.Errorf("grader: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		c.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.Qdrant.APIKey = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.LLM.Ollama.BaseURL = v
		c.Grader.Ollama.BaseURL = v
		c.Embedding.Ollama.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.LLM.OpenAI.APIKey == "" {
			c.LLM.OpenAI.APIKey = v
		}
		if c.Embedding.OpenAI.APIKey == "" {
			c.Embedding.OpenAI.APIKey = v
		}
	}
}

// Load reads the config file, expands ${VAR} references, applies
// environment overrides, then fills defaults and validates. An empty path
// yields the default configuration. A .env file next to the process is
// loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
