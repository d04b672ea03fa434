package model

import "time"

// Config is the full application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Agent     AgentConfig     `yaml:"agent" mapstructure:"agent"`
	Vision    VisionConfig    `yaml:"vision" mapstructure:"vision"`
	Eval      EvalConfig      `yaml:"eval" mapstructure:"eval"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP claim-submission service
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	DecisionTTL    time.Duration `yaml:"decision_ttl" mapstructure:"decision_ttl"`
}

// StorageConfig configures the claim object store
type StorageConfig struct {
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey    string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey    string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket       string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL       bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	PolicyObject string `yaml:"policy_object" mapstructure:"policy_object"`
}

// DatabaseConfig configures decision persistence
type DatabaseConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// AgentConfig configures the reasoning loop
type AgentConfig struct {
	Model    string        `yaml:"model" mapstructure:"model"`
	APIKey   string        `yaml:"-" mapstructure:"api_key"`
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	MaxSteps int           `yaml:"max_steps" mapstructure:"max_steps"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// VisionConfig configures the image question-answering capability
type VisionConfig struct {
	Model     string        `yaml:"model" mapstructure:"model"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EvalConfig configures the evaluation harness
type EvalConfig struct {
	Concurrency  int           `yaml:"concurrency" mapstructure:"concurrency"`
	ClaimTimeout time.Duration `yaml:"claim_timeout" mapstructure:"claim_timeout"`
	JudgeModel   string        `yaml:"judge_model" mapstructure:"judge_model"`
	JudgeEnabled bool          `yaml:"judge_enabled" mapstructure:"judge_enabled"`
}

// RateLimitConfig bounds outbound request rates
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			MaxUploadBytes: 16 << 20,
			DecisionTTL:    24 * time.Hour,
		},
		Storage: StorageConfig{
			Endpoint:     "localhost:9000",
			Bucket:       "claims-bucket",
			UseSSL:       false,
			PolicyObject: "policy/policy.md",
		},
		Agent: AgentConfig{
			Model:    "gpt-4o-mini",
			MaxSteps: 20,
			Timeout:  60 * time.Second,
		},
		Vision: VisionConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 500,
			Timeout:   45 * time.Second,
		},
		Eval: EvalConfig{
			Concurrency:  5,
			ClaimTimeout: 2 * time.Minute,
			JudgeModel:   "gpt-4o-mini",
			JudgeEnabled: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2.0,
			Burst:             5,
		},
	}
}
