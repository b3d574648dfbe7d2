package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the question-answering pipeline.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Answer    AnswerConfig    `yaml:"answer"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds chunking and document cache configuration.
type IngestConfig struct {
	Includes        []string `yaml:"includes"`
	Stemming        bool     `yaml:"stemming"`
	TableMinTokens  int      `yaml:"table_min_tokens"`
	TableMaxTokens  int      `yaml:"table_max_tokens"`
	ClauseMaxTokens int      `yaml:"clause_max_tokens"`
	TextMaxTokens   int      `yaml:"text_max_tokens"`
	OverlapChars    int      `yaml:"overlap_chars"`
	MinChunkTokens  int      `yaml:"min_chunk_tokens"`
	CacheSize       int      `yaml:"cache_size"`
	CacheTTL        Duration `yaml:"cache_ttl"`
}

// RetrieveConfig holds hybrid retrieval configuration.
type RetrieveConfig struct {
	K1            float64  `yaml:"k1"`
	B             float64  `yaml:"b"`
	LexicalWeight float64  `yaml:"lexical_weight"` // vector weight is the complement
	SearchK       int      `yaml:"search_k"`
	ExpandTerms   int      `yaml:"expand_terms"`
	HyDETimeout   Duration `yaml:"hyde_timeout"`
	HyDEMaxTokens int      `yaml:"hyde_max_tokens"`
}

// RerankConfig holds two-pass reranking configuration.
type RerankConfig struct {
	PassOneKeep int      `yaml:"pass_one_keep"`
	PassTwoKeep int      `yaml:"pass_two_keep"`
	CallTimeout Duration `yaml:"call_timeout"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// AnswerConfig holds generation, validation and batch configuration.
type AnswerConfig struct {
	ContextBudget      int      `yaml:"context_budget"` // characters
	MaxTokens          int      `yaml:"max_tokens"`
	Timeout            Duration `yaml:"timeout"`
	ValidatorThreshold float64  `yaml:"validator_threshold"`
	ValidatorTimeout   Duration `yaml:"validator_timeout"`
	Concurrency        int      `yaml:"concurrency"`
	QuestionDeadline   Duration `yaml:"question_deadline"`
}

// GuardrailConfig holds the domain gate configuration.
type GuardrailConfig struct {
	// AllowVehicleTerms lifts the vehicle-topic pre-filter for
	// deployments whose document is itself a vehicle manual.
	AllowVehicleTerms bool     `yaml:"allow_vehicle_terms"`
	CallTimeout       Duration `yaml:"call_timeout"`
}

// LLMConfig holds the text-completion service configuration.
type LLMConfig struct {
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
}

// VectorConfig holds vector store configuration.
type VectorConfig struct {
	Provider    string `yaml:"provider"` // "memory", "pgvector"
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Includes:        []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Stemming:        true,
			TableMinTokens:  200,
			TableMaxTokens:  400,
			ClauseMaxTokens: 1200,
			TextMaxTokens:   1500,
			OverlapChars:    400,
			MinChunkTokens:  120,
			CacheSize:       100,
			CacheTTL:        Duration(time.Hour),
		},
		Retrieve: RetrieveConfig{
			K1:            1.2,
			B:             0.75,
			LexicalWeight: 0.6,
			SearchK:       50,
			ExpandTerms:   4,
			HyDETimeout:   Duration(5 * time.Second),
			HyDEMaxTokens: 200,
		},
		Rerank: RerankConfig{
			PassOneKeep: 20,
			PassTwoKeep: 12,
			CallTimeout: Duration(30 * time.Second),
			MaxTokens:   400,
		},
		Answer: AnswerConfig{
			ContextBudget:      14000,
			MaxTokens:          500,
			Timeout:            Duration(30 * time.Second),
			ValidatorThreshold: 0.5,
			ValidatorTimeout:   Duration(15 * time.Second),
			Concurrency:        3,
			QuestionDeadline:   Duration(90 * time.Second),
		},
		Guardrail: GuardrailConfig{
			AllowVehicleTerms: false,
			CallTimeout:       Duration(5 * time.Second),
		},
		LLM: LLMConfig{
			Model:             "gpt-4o-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			RequestsPerSecond: 5,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		Vector: VectorConfig{
			Provider: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for
// policyqa.yaml, then .policyqa/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "policyqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".policyqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".policyqa", "index.db")
}

// EnsureDataDir ensures the .policyqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".policyqa"), 0755)
}
