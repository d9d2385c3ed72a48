package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpggio/cinequery/internal/domain/query"
)

// Transport modes.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// DefaultDBPath keeps the audit log in a shared in-memory database.
const DefaultDBPath = "file:cinequery?mode=memory&cache=shared"

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	LLM       LLMConfig       `yaml:"llm"`
	S3        S3Config        `yaml:"s3"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []APIKey `yaml:"keys"`
}

// APIKey is a bearer token seeded into the key table at startup.
type APIKey struct {
	Client      string `yaml:"client"`
	Token       string `yaml:"token"`
	Description string `yaml:"description"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatasetConfig struct {
	Source        string `yaml:"source"`
	DirectorMatch string `yaml:"director_match"`
	ActorMatch    string `yaml:"actor_match"`
	GenreMatch    string `yaml:"genre_match"`
}

type LLMConfig struct {
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			CORSOrigin: "*",
		},
		Transport: TransportConfig{
			Mode: ModeHTTP,
		},
		DB: DBConfig{
			Path: DefaultDBPath,
		},
		Log: LogConfig{
			Level: "info",
		},
		Dataset: DatasetConfig{
			Source:        "data/movies_db.json",
			DirectorMatch: string(query.MatchSubstring),
			ActorMatch:    string(query.MatchSubstring),
			GenreMatch:    string(query.MatchExact),
		},
		LLM: LLMConfig{
			Timeout:    15 * time.Second,
			MaxRetries: 3,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CINEQUERY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("CINEQUERY_SERVER_HOST", &cfg.Server.Host)
	if portStr := os.Getenv("CINEQUERY_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid CINEQUERY_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	setString("CINEQUERY_CORS_ORIGIN", &cfg.Server.CORSOrigin)
	setString("CINEQUERY_TRANSPORT_MODE", &cfg.Transport.Mode)
	setString("CINEQUERY_DB_PATH", &cfg.DB.Path)
	setString("CINEQUERY_LOG_LEVEL", &cfg.Log.Level)
	setString("CINEQUERY_DATASET_SOURCE", &cfg.Dataset.Source)
	setString("CINEQUERY_DIRECTOR_MATCH", &cfg.Dataset.DirectorMatch)

	if v := os.Getenv("CINEQUERY_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CINEQUERY_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if v := os.Getenv("CINEQUERY_API_KEYS"); v != "" {
		keys, err := parseKeys(v)
		if err != nil {
			return fmt.Errorf("invalid CINEQUERY_API_KEYS: %w", err)
		}
		cfg.Auth.Keys = append(cfg.Auth.Keys, keys...)
	}

	setString("GEMINI_API_KEY", &cfg.LLM.APIKey)
	setString("GEMINI_MODEL", &cfg.LLM.Model)
	if v := os.Getenv("CINEQUERY_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CINEQUERY_LLM_TIMEOUT: %w", err)
		}
		cfg.LLM.Timeout = d
	}

	setString("AWS_REGION", &cfg.S3.Region)
	setString("AWS_ENDPOINT_URL", &cfg.S3.Endpoint)
	setString("AWS_ACCESS_KEY_ID", &cfg.S3.AccessKeyID)
	setString("AWS_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey)
	return nil
}

// parseKeys reads "client:token" pairs separated by commas.
func parseKeys(s string) ([]APIKey, error) {
	var keys []APIKey
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		client, token, ok := strings.Cut(pair, ":")
		if !ok || client == "" || token == "" {
			return nil, fmt.Errorf("entry %q must be client:token", pair)
		}
		keys = append(keys, APIKey{Client: client, Token: token})
	}
	return keys, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Transport.Mode != ModeHTTP && c.Transport.Mode != ModeStdio {
		errs = append(errs, fmt.Errorf("transport.mode must be %q or %q, got %q", ModeHTTP, ModeStdio, c.Transport.Mode))
	}
	if strings.TrimSpace(c.Dataset.Source) == "" {
		errs = append(errs, errors.New("dataset.source is required"))
	}
	for name, policy := range map[string]string{
		"dataset.director_match": c.Dataset.DirectorMatch,
		"dataset.actor_match":    c.Dataset.ActorMatch,
		"dataset.genre_match":    c.Dataset.GenreMatch,
	} {
		if _, err := query.ParseMatchPolicy(policy); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries))
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		errs = append(errs, errors.New("auth.enabled requires at least one key"))
	}
	for i, k := range c.Auth.Keys {
		if k.Client == "" || k.Token == "" {
			errs = append(errs, fmt.Errorf("auth.keys[%d] needs client and token", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
