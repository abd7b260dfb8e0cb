// Package config loads the server's YAML configuration as a process-wide
// singleton, grounded on src/internal/config.go. Extended with the
// artifact, scheduler and http sections the workflow engine needs.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "./config.yml"

// AppConfig is the top-level configuration document.
type AppConfig struct {
	LogLevel uint8 `yaml:"log_level"`
	Debug    bool  `yaml:"debug"`
	Testing  bool  `yaml:"testing"`

	Database struct {
		Debug    bool   `yaml:"debug"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"database"`

	Artifacts struct {
		// Root overrides automatic root selection when set.
		Root string `yaml:"root"`
	} `yaml:"artifacts"`

	Scheduler struct {
		GCInterval   time.Duration `yaml:"gc_interval"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"scheduler"`

	HTTP struct {
		Host           string        `yaml:"host"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"http"`

	SiteMatrix struct {
		// TTL is loaded with a 24h default. The namespace cache (C9) does
		// not read it: it keeps each wiki's table for the life of the
		// process and never refetches.
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"site_matrix"`
}

var (
	once sync.Once
	cfg  *AppConfig
)

// App returns the process-wide configuration singleton, loading it on
// first use.
func App() *AppConfig {
	once.Do(func() {
		cfg = prepareConfig()
	})
	return cfg
}

func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	if os.Getenv("TESTING") == "true" {
		return "./testing.config.yml"
	}
	return defaultConfigPath
}

func prepareConfig() *AppConfig {
	configPath := getConfigPath()
	log.Info().Str("path", configPath).Msg("using config path")

	buffer, err := os.ReadFile(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("reading config file")
	}

	var c AppConfig
	if err := yaml.Unmarshal(buffer, &c); err != nil {
		log.Fatal().Err(err).Msg("parsing yaml config")
	}

	applyDefaults(&c)
	validateConfig(&c)

	log.Info().Msg("configuration loaded")
	return &c
}

func applyDefaults(c *AppConfig) {
	if c.Scheduler.GCInterval <= 0 {
		c.Scheduler.GCInterval = 5 * time.Minute
	}
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = 500 * time.Millisecond
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 300 * time.Second
	}
	if c.SiteMatrix.TTL <= 0 {
		c.SiteMatrix.TTL = 24 * time.Hour
	}
}

func validateConfig(c *AppConfig) {
	if c.Testing {
		return
	}
	if c.Database.Host == "" || c.Database.Port == "" || c.Database.Name == "" ||
		c.Database.User == "" || c.Database.Password == "" {
		log.Fatal().Msg("database configuration is incomplete")
	}
}

// PGUri builds the Postgres connection string bun's pgdriver consumes.
func (c *AppConfig) PGUri() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

// ArtifactRoot picks the artifact storage root per the process mode:
// configured override, then test build, then production-toolforge layout,
// then a local tmp directory.
func (c *AppConfig) ArtifactRoot() string {
	if c.Artifacts.Root != "" {
		return c.Artifacts.Root
	}
	if c.Testing || os.Getenv("TESTING") == "true" {
		return "./test_data"
	}
	if _, err := os.Stat("/data/project/toolflow"); err == nil {
		return "/data/project/toolflow/data"
	}
	return "./tmp"
}
