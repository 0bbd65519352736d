package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	LLMAPIKey          string        `env:"LLM_API_KEY"`
	LLMBaseURL         string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel           string        `env:"LLM_MODEL" envDefault:"gpt-4.1-mini"`
	LLMResponseTimeout time.Duration `env:"LLM_RESPONSE_TIMEOUT" envDefault:"60s"`
	DocsExportBaseURL  string        `env:"DOCS_EXPORT_BASE_URL" envDefault:"https://docs.google.com"`
	MaxDocumentBytes   int64         `env:"MAX_DOCUMENT_BYTES" envDefault:"5242880"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	HistoryWindow      int           `env:"HISTORY_WINDOW" envDefault:"10"`
	CORSAllowedOrigin  string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	LogDevelopment     bool          `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
