package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/turingden.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Base URL prefixed onto the host/detective/spy URLs returned by room
	// creation. Empty means relative paths.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	// Content generator. An empty API key leaves persona and post
	// generation on the fallback path, which is fine for local play.
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"8s"`

	// Scheduler loop interval for persona posting.
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"20s"`

	// Persona policy version: trait-to-frequency mapping plus the fallback
	// persona roster and canned post lines.
	PersonaPolicy string `env:"PERSONA_POLICY" envDefault:"v2"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
