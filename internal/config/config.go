// Package config provides configuration loading and structs for the mailsift server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	ProviderHash = "hash"
	ProviderONNX = "onnx"
)

// EnvPrefix is the prefix for environment overrides, e.g. MAILSIFT_SERVER_PORT.
const EnvPrefix = "MAILSIFT"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug" envconfig:"DEBUG"`
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Embedding  EmbeddingConfig  `yaml:"embedding" envconfig:"EMBEDDING"`
	Classifier ClassifierConfig `yaml:"classifier" envconfig:"CLASSIFIER"`
	Rules      RulesConfig      `yaml:"rules" envconfig:"RULES"`
	Watch      WatchConfig      `yaml:"watch" envconfig:"WATCH"`
}

// WatchConfig holds mail-drop directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories" envconfig:"DIRECTORIES"`
	Extensions  []string `yaml:"extensions" envconfig:"EXTENSIONS"`
	Recursive   *bool    `yaml:"recursive" envconfig:"RECURSIVE"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" envconfig:"HOST"`
	Port int    `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
}

// StorageConfig holds the classification history database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" envconfig:"PROVIDER" validate:"oneof=hash onnx"`
	ModelPath  string `yaml:"model_path" envconfig:"MODEL_PATH"`
	Dimensions int    `yaml:"dimensions" envconfig:"DIMENSIONS" validate:"gt=0"`
	MaxTokens  int    `yaml:"max_tokens" envconfig:"MAX_TOKENS" validate:"gt=0"`
	CacheSize  int    `yaml:"cache_size" envconfig:"CACHE_SIZE" validate:"min=0"`
}

// ClassifierConfig selects where the network weights come from.
// When WeightsPath is empty the model is built from demo weights drawn with Seed.
type ClassifierConfig struct {
	WeightsPath string `yaml:"weights_path" envconfig:"WEIGHTS_PATH"`
	Seed        uint64 `yaml:"seed" envconfig:"SEED"`
}

// RulesConfig holds the phrase list for the keyword engine.
type RulesConfig struct {
	Phrases []string `yaml:"phrases" envconfig:"PHRASES"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
// A .env file next to the config, if present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Classifier.WeightsPath != "" {
		cfg.Classifier.WeightsPath = expandPath(cfg.Classifier.WeightsPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks value ranges. Call it after ApplyDefaults.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ApplyEnv overlays MAILSIFT_* environment variables onto cfg. Unset variables leave fields untouched.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
