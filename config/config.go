package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the docuery backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// OpenAIConfig describes the OpenAI-compatible provider endpoint used for
// both chat completions and embeddings.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	SiteURL        string        `mapstructure:"site_url"`
	AppName        string        `mapstructure:"app_name"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ProviderHeaders returns extra request headers required when routing
// through an alternate provider. OpenRouter attributes traffic via
// X-Title / HTTP-Referer; the stock OpenAI endpoint needs none.
func (o OpenAIConfig) ProviderHeaders() map[string]string {
	if !strings.Contains(strings.ToLower(o.BaseURL), "openrouter.ai") {
		return nil
	}
	headers := map[string]string{"X-Title": o.AppName}
	if o.SiteURL != "" {
		headers["HTTP-Referer"] = o.SiteURL
	}
	return headers
}

// IngestConfig contains chunking and retrieval knobs.
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// StorageConfig contains filesystem and database settings.
type StorageConfig struct {
	Dir                 string         `mapstructure:"dir"`
	UploadsSubdir       string         `mapstructure:"uploads_subdir"`
	RegistryFile        string         `mapstructure:"registry_file"`
	EmbeddingDimensions int            `mapstructure:"embedding_dimensions"`
	Postgres            PostgresConfig `mapstructure:"postgres"`
	Redis               RedisConfig    `mapstructure:"redis"`
}

// UploadsDir is where raw uploaded PDF bytes are persisted.
func (s StorageConfig) UploadsDir() string {
	return filepath.Join(s.Dir, s.UploadsSubdir)
}

// RegistryPath is the JSON document registry location.
func (s StorageConfig) RegistryPath() string {
	return filepath.Join(s.Dir, s.RegistryFile)
}

// PostgresConfig contains the vector index database settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains optional chat session store settings. An empty
// host disables Redis and falls back to the in-memory session store.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// TelemetryConfig controls the /metrics endpoint.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from a JSON config file plus DOCUERY_*
// environment variables. An explicit path is required to exist; otherwise
// a missing config file is fine and defaults apply.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("openai.chat_model", "gpt-4o-mini")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.app_name", "Docuery")
	viper.SetDefault("openai.timeout", "60s")
	viper.SetDefault("ingest.chunk_size", 1000)
	viper.SetDefault("ingest.chunk_overlap", 200)
	viper.SetDefault("ingest.top_k", 4)
	viper.SetDefault("storage.dir", "storage")
	viper.SetDefault("storage.uploads_subdir", "uploads")
	viper.SetDefault("storage.registry_file", "documents.json")
	viper.SetDefault("storage.embedding_dimensions", 1536)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DOCUERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
