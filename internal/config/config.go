package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`
	Submission struct {
		MaxRetries    int    `yaml:"maxRetries"`
		BaseDelay     string `yaml:"baseDelay"`
		DisplayDelay  string `yaml:"displayDelay"`
		Heartbeat     string `yaml:"heartbeat"`
		RetryRejected *bool  `yaml:"retryRejected"`
	} `yaml:"submission"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Analysis struct {
		TTL string `yaml:"ttl"`
	} `yaml:"analysis"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then applies a .env file from the working
// directory and environment overrides. A missing config file yields defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// .env is optional; variables already in the environment win
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"QUIZFLOW_BACKEND_URL": &c.Backend.URL,
		"REDIS_ADDR":           &c.Redis.Addr,
		"REDIS_PASSWORD":       &c.Redis.Password,
		"POSTGRES_URL":         &c.Postgres.URL,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("QUIZFLOW_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Submission.MaxRetries = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Backend.URL == "" {
		c.Backend.URL = "http://localhost:5000"
	}
	if c.Submission.MaxRetries <= 0 {
		c.Submission.MaxRetries = 3
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// RetryRejected reports whether 4xx scoring responses are retried. Defaults to true.
func (c Config) RetryRejected() bool {
	if c.Submission.RetryRejected == nil {
		return true
	}
	return *c.Submission.RetryRejected
}

// TTLDuration parses a duration string. Empty, unparsable and non-positive
// values return the fallback: every configured duration is a ticker period,
// a delay or an expiry, none of which may be zero.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
