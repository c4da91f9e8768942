package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	Ollama struct {
		BaseURL    string `yaml:"base_url"`
		ChatModel  string `yaml:"chat_model"`
		EmbedModel string `yaml:"embed_model"`
	} `yaml:"ollama"`
	Processing struct {
		ChunkSize        int `yaml:"chunk_size"`
		ChunkOverlap     int `yaml:"chunk_overlap"`
		TopK             int `yaml:"top_k"`
		EmbedConcurrency int `yaml:"embed_concurrency"`
		AgentConcurrency int `yaml:"agent_concurrency"`
		MaxRetries       int `yaml:"max_retries"`
	} `yaml:"processing"`
	Agents struct {
		// Passes restricts the analysis roster to the named passes.
		// Empty means the full default roster.
		Passes []string `yaml:"passes"`
	} `yaml:"agents"`
}

// Load loads configuration from file or returns defaults.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if v := os.Getenv("RFP_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}

	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":8000"
	cfg.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	cfg.Database.ConnectionString = ""
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.ChatModel = "llama3.2"
	cfg.Ollama.EmbedModel = "nomic-embed-text"
	cfg.Processing.ChunkSize = 4000
	cfg.Processing.ChunkOverlap = 200
	cfg.Processing.TopK = 5
	cfg.Processing.EmbedConcurrency = 4
	cfg.Processing.AgentConcurrency = 3
	cfg.Processing.MaxRetries = 3

	return cfg
}
