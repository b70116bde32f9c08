// Package config loads the docchat configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// QdrantConfig contains connection details for the Qdrant vector store.
type QdrantConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// ChatModel describes one supported chat model.
type ChatModel struct {
	Name      string `yaml:"name"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ChatConfig configures the chat model client.
type ChatConfig struct {
	BaseURL      string               `yaml:"base_url"`
	APIKeyEnv    string               `yaml:"api_key_env"`
	DefaultModel string               `yaml:"default_model"`
	Models       map[string]ChatModel `yaml:"models"`
}

// Config is the root application configuration.
type Config struct {
	Qdrant      QdrantConfig    `yaml:"qdrant"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	Chat        ChatConfig      `yaml:"chat"`
	UploadDir   string          `yaml:"upload_dir"`
	SessionFile string          `yaml:"session_file"`
}

// Load reads a config from the given path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docchat/config.yaml.
// If neither exists, defaults are returned (and not written to disk).
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return Load("config.yaml")
	}
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "docchat", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return Load(userPath)
		}
	}
	cfg := Default()
	applyEnv(cfg)
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Model resolves a model key (e.g. "llama3_instant") to its definition.
func (c *Config) Model(key string) (ChatModel, error) {
	if key == "" {
		key = c.Chat.DefaultModel
	}
	m, ok := c.Chat.Models[key]
	if !ok {
		return ChatModel{}, fmt.Errorf("unsupported model %q", key)
	}
	return m, nil
}

// ModelKeys returns the supported model keys in sorted order.
func (c *Config) ModelKeys() []string {
	keys := make([]string, 0, len(c.Chat.Models))
	for k := range c.Chat.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Qdrant: QdrantConfig{
			Host:        "localhost",
			Port:        6334,
			Collection:  "chatbot-documents",
			TimeoutSecs: 30,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 384,
			BatchSize: 500,
		},
		Chat: ChatConfig{
			BaseURL:      "https://api.groq.com/openai/v1",
			APIKeyEnv:    "GROQ_API_KEY",
			DefaultModel: "llama3_instant",
			Models: map[string]ChatModel{
				"llama3_instant":   {Name: "llama-3.1-8b-instant", MaxTokens: 131072},
				"llama3_versatile": {Name: "llama-3.3-70b-versatile", MaxTokens: 32768},
				"gemma2_9b_it":     {Name: "gemma2-9b-it", MaxTokens: 8192},
			},
		},
		UploadDir:   "data/uploads",
		SessionFile: "data/chat_sessions.json",
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = def.Qdrant.Host
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = def.Qdrant.Port
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Qdrant.TimeoutSecs == 0 {
		cfg.Qdrant.TimeoutSecs = def.Qdrant.TimeoutSecs
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = def.Chat.BaseURL
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = def.Chat.APIKeyEnv
	}
	if len(cfg.Chat.Models) == 0 {
		cfg.Chat.Models = def.Chat.Models
	}
	if cfg.Chat.DefaultModel == "" {
		cfg.Chat.DefaultModel = def.Chat.DefaultModel
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = def.UploadDir
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = def.SessionFile
	}
}

// applyEnv overrides connection settings from the environment so that
// deployments can configure everything without a config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Qdrant.Port = port
		}
	}
}
