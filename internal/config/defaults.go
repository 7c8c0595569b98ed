package config

// DefaultPhrases are the keyword engine's phrases when none are configured.
var DefaultPhrases = []string{"buy now", "free", "winner", "lottery", "viagra", "discount"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mailsift/data/history.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/mailsift/data/models/universal-sentence-encoder.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Classifier.Seed == 0 {
		cfg.Classifier.Seed = 42
	}
	if len(cfg.Rules.Phrases) == 0 {
		cfg.Rules.Phrases = append([]string(nil), DefaultPhrases...)
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".eml", ".txt", ".msg"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
