package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for the server.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8100"`
	DBPath     string `env:"DB_PATH" envDefault:"mychat.db"`
	WebDir     string `env:"WEB_DIR" envDefault:"web"`

	// Inference backend
	HFToken    string `env:"HUGGINGFACE_TOKEN"`
	HFBaseURL  string `env:"HF_BASE_URL" envDefault:"https://router.huggingface.co"`
	ChatModel  string `env:"HF_MODEL" envDefault:"meta-llama/Llama-3.2-3B-Instruct"`
	ImageModel string `env:"HF_IMAGE_MODEL" envDefault:"black-forest-labs/FLUX.1-schnell"`
	MaxTokens  int    `env:"MAX_TOKENS" envDefault:"1000"`

	// Search backend
	SearchBaseURL string        `env:"SEARCH_BASE_URL" envDefault:"https://duckduckgo.com"`
	SearchTimeout time.Duration `env:"SEARCH_TIMEOUT" envDefault:"5s"`

	// Turn handling
	StreamIdleTimeout  time.Duration `env:"STREAM_IDLE_TIMEOUT" envDefault:"90s"`
	HistoryTokenBudget int           `env:"HISTORY_TOKEN_BUDGET" envDefault:"3000"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
