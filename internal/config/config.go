package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Vision backends accepted by VISION_BACKEND.
const (
	VisionNone   = "none"
	VisionClaude = "claude"
	VisionOllama = "ollama"
)

type Config struct {
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath       string `env:"DB_PATH" envDefault:"/data/interop.db"`
	MediaPath    string `env:"MEDIA_PATH" envDefault:"/data/media"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile      string `env:"LOG_FILE"`
	LogMaxSizeMB int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`

	// JWTSecret signs and verifies the bearer tokens that identify users.
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	VisionBackend string `env:"VISION_BACKEND" envDefault:"none"`
	ClaudeAPIKey  string `env:"CLAUDE_API_KEY"`
	ClaudeModel   string `env:"CLAUDE_MODEL" envDefault:"claude-sonnet-4-5"`
	OllamaHost    string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaModel   string `env:"OLLAMA_MODEL" envDefault:"llava"`
}

// Load reads configuration from the environment. Each dotenv file is loaded
// first if it exists; variables already set in the environment win.
// With no files given, ".env" in the working directory is tried.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.VisionBackend {
	case VisionNone, VisionOllama:
	case VisionClaude:
		if cfg.ClaudeAPIKey == "" {
			return nil, errors.New("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
		}
	default:
		return nil, fmt.Errorf("unknown VISION_BACKEND %q; expected none, claude or ollama", cfg.VisionBackend)
	}
	return cfg, nil
}
