// Package config loads worker configuration from a YAML file with
// environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// QueueSettings are the per-queue knobs.
type QueueSettings struct {
	// Concurrency is the hard cap on simultaneous handler invocations.
	Concurrency int `yaml:"concurrency"`

	// MaxAttempts before a failed job is dead-lettered.
	MaxAttempts int `yaml:"max_attempts"`

	// TimeoutSeconds bounds one handler invocation; 0 disables the wrapper.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the handler timeout as a duration.
func (q QueueSettings) Timeout() time.Duration {
	return time.Duration(q.TimeoutSeconds) * time.Second
}

// Config is the full worker configuration.
type Config struct {
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	ConsumerGroup string `yaml:"consumer_group"`
	BlockMs       int    `yaml:"block_ms"`

	// PostgresDSN enables the Postgres asset store; empty falls back to the
	// in-memory store (development only).
	PostgresDSN string `yaml:"postgres_dsn"`

	GenerationURL string `yaml:"generation_url"`

	Debug bool `yaml:"debug"`

	Queues map[string]QueueSettings `yaml:"queues"`
}

// Default returns the built-in configuration. Generation-heavy kinds run at
// concurrency 1; lighter kinds at 2. LoRA training gets a lower attempt
// limit because a failed multi-minute run is rarely worth three replays.
func Default() Config {
	return Config{
		RedisURL:      "redis://localhost:6379",
		ConsumerGroup: "stickernest-workers",
		BlockMs:       5000,
		GenerationURL: "http://localhost:8100",
		Queues: map[string]QueueSettings{
			"ai:image":  {Concurrency: 2, MaxAttempts: 3},
			"ai:video":  {Concurrency: 1, MaxAttempts: 3},
			"ai:widget": {Concurrency: 2, MaxAttempts: 3},
			"ai:lora":   {Concurrency: 1, MaxAttempts: 2},
		},
	}
}

// Load reads the config file at path (if it exists), then applies
// environment overrides. A missing file is not an error; the defaults
// already describe a local development setup.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.RedisURL == "" {
		return cfg, fmt.Errorf("redis_url is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("CONSUMER_GROUP"); v != "" {
		cfg.ConsumerGroup = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("GENERATION_URL"); v != "" {
		cfg.GenerationURL = v
	}
}

// QueueSettingsFor returns the settings for a queue, falling back to sane
// minimums for queues absent from the file.
func (c Config) QueueSettingsFor(queue string) QueueSettings {
	s, ok := c.Queues[queue]
	if !ok {
		return QueueSettings{Concurrency: 1, MaxAttempts: 3}
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 3
	}
	return s
}

// MaxAttemptsByQueue flattens the per-queue attempt limits for the transport.
func (c Config) MaxAttemptsByQueue() map[string]int {
	out := make(map[string]int, len(c.Queues))
	for name := range c.Queues {
		out[name] = c.QueueSettingsFor(name).MaxAttempts
	}
	return out
}
