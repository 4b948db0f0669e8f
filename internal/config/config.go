// Package config manages the global (~/.config/memchat/config.toml)
// configuration for memchat.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds user-wide settings.
type Config struct {
	DefaultProvider    string        `toml:"default_provider"`
	Model              string        `toml:"model"`
	Keys               KeysConfig    `toml:"keys"`
	Ollama             OllamaConfig  `toml:"ollama"`
	Memory             MemoryConfig  `toml:"memory"`
	Storage            StorageConfig `toml:"storage"`
	Web                WebConfig     `toml:"web"`
	RequestTimeoutSecs int           `toml:"request_timeout_secs"`
}

type KeysConfig struct {
	Anthropic string `toml:"anthropic"`
	OpenAI    string `toml:"openai"`
	Gemini    string `toml:"gemini"`
}

type OllamaConfig struct {
	Host            string `toml:"host"`
	CompletionModel string `toml:"completion_model"`
}

// MemoryConfig controls the session-memory pipeline: when summarization
// triggers, how much recent context flows into query understanding, and how
// the clarification sub-dialogue is bounded.
type MemoryConfig struct {
	SummarizeThreshold       int `toml:"summarize_threshold"`
	RecentWindow             int `toml:"recent_window"`
	HistoryCap               int `toml:"history_cap"`
	PostSummaryTail          int `toml:"post_summary_tail"`
	MaxClarificationAttempts int `toml:"max_clarification_attempts"`
}

// StorageConfig locates the durable stores: the SQLite conversation history
// database and the per-session summary directory.
type StorageConfig struct {
	HistoryDB  string `toml:"history_db"`
	SummaryDir string `toml:"summary_dir"`
}

type WebConfig struct {
	Addr string `toml:"addr"`
}

// Default returns sensible defaults.
func Default() Config {
	data := dataDir()
	return Config{
		DefaultProvider: "gemini",
		Ollama: OllamaConfig{
			Host:            "http://localhost:11434",
			CompletionModel: "llama3.2",
		},
		Memory: MemoryConfig{
			SummarizeThreshold:       2000,
			RecentWindow:             3,
			HistoryCap:               12,
			PostSummaryTail:          4,
			MaxClarificationAttempts: 1,
		},
		Storage: StorageConfig{
			HistoryDB:  filepath.Join(data, "history.db"),
			SummaryDir: filepath.Join(data, "summaries"),
		},
		Web: WebConfig{
			Addr: "127.0.0.1:8377",
		},
		RequestTimeoutSecs: 120,
	}
}

// dataDir returns the directory for memchat's durable state.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memchat"
	}
	return filepath.Join(home, ".local", "share", "memchat")
}

// Path returns the path to the global config file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "memchat", "config.toml"), nil
}

// Load loads the config, applying defaults for any missing values.
// Environment variables override file values.
func Load() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, decErr := toml.DecodeFile(path, &cfg); decErr != nil {
				return cfg, fmt.Errorf("config: load: %w", decErr)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	}
	if v := os.Getenv("MEMCHAT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
	if v := os.Getenv("MEMCHAT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MEMCHAT_DATA_DIR"); v != "" {
		cfg.Storage.HistoryDB = filepath.Join(v, "history.db")
		cfg.Storage.SummaryDir = filepath.Join(v, "summaries")
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
