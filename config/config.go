// Package config loads embedmesh settings from YAML.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/embedmesh/core"
	"github.com/hupe1980/embedmesh/gate"
	"github.com/hupe1980/embedmesh/logging"
	"github.com/hupe1980/embedmesh/oembed"
	"github.com/hupe1980/embedmesh/orchestrator"
	"github.com/hupe1980/embedmesh/renderer"
	"github.com/hupe1980/embedmesh/view"
)

// Config is the root configuration. Durations accept Go duration strings
// such as "1.5s" or "300ms".
type Config struct {
	Script   core.Script         `yaml:"script"`
	Display  core.DisplayOptions `yaml:"display"`
	Gate     GateConfig          `yaml:"gate"`
	Renderer RendererConfig      `yaml:"renderer"`
	Pass     PassConfig          `yaml:"pass"`
	OEmbed   OEmbedConfig        `yaml:"oembed"`
	Logging  LoggingConfig       `yaml:"logging"`
	Server   ServerConfig        `yaml:"server"`
}

// GateConfig bounds the readiness wait.
type GateConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RendererConfig tunes the fallback chain.
type RendererConfig struct {
	AttemptTimeout  time.Duration `yaml:"attemptTimeout"`
	MaxAttempts     int           `yaml:"maxAttempts"`
	SettleDelay     time.Duration `yaml:"settleDelay"`
	StatusURLPrefix string        `yaml:"statusURLPrefix"`
}

// PassConfig tunes render passes.
type PassConfig struct {
	MaxConcurrentRenders int             `yaml:"maxConcurrentRenders"`
	TopN                 int             `yaml:"topN"`
	PageSize             int             `yaml:"pageSize"`
	ParentContext        bool            `yaml:"parentContext"`
	RepollDelays         []time.Duration `yaml:"repollDelays"`
}

// OEmbedConfig configures the server-side embed provider.
type OEmbedConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig selects level and format ("json" or "text").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig is the preview server listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Script:  core.DefaultScript,
		Display: core.DefaultDisplayOptions,
		Gate:    GateConfig{Timeout: gate.DefaultTimeout},
		Renderer: RendererConfig{
			AttemptTimeout:  renderer.DefaultAttemptTimeout,
			MaxAttempts:     renderer.DefaultMaxAttempts,
			SettleDelay:     renderer.DefaultSettleDelay,
			StatusURLPrefix: renderer.DefaultStatusURLPrefix,
		},
		Pass: PassConfig{
			MaxConcurrentRenders: orchestrator.DefaultConfig.MaxConcurrentRenders,
			TopN:                 view.DefaultTopN,
			PageSize:             view.DefaultPageSize,
			ParentContext:        orchestrator.DefaultConfig.ParentContext,
			RepollDelays:         append([]time.Duration(nil), orchestrator.DefaultConfig.RepollDelays...),
		},
		OEmbed:  OEmbedConfig{Endpoint: oembed.DefaultEndpoint, Timeout: oembed.DefaultTimeout},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults and validates the result. Fields
// missing from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and URLs.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Script.ID == "" {
		return fmt.Errorf("script.id is required")
	}
	if err := validateURL("script.url", c.Script.URL); err != nil {
		return err
	}
	if c.Gate.Timeout <= 0 {
		return fmt.Errorf("gate.timeout must be positive")
	}
	if c.Renderer.AttemptTimeout <= 0 {
		return fmt.Errorf("renderer.attemptTimeout must be positive")
	}
	if c.Renderer.MaxAttempts < 1 {
		return fmt.Errorf("renderer.maxAttempts must be at least 1")
	}
	if c.Renderer.SettleDelay < 0 {
		return fmt.Errorf("renderer.settleDelay cannot be negative")
	}
	if err := validateURL("renderer.statusURLPrefix", c.Renderer.StatusURLPrefix); err != nil {
		return err
	}
	if c.Pass.MaxConcurrentRenders < 0 {
		return fmt.Errorf("pass.maxConcurrentRenders cannot be negative")
	}
	if c.Pass.TopN < 1 {
		return fmt.Errorf("pass.topN must be at least 1")
	}
	if view.NormalizePageSize(c.Pass.PageSize) != c.Pass.PageSize {
		return fmt.Errorf("pass.pageSize must be one of %v", view.PageSizes)
	}
	for i, d := range c.Pass.RepollDelays {
		if d <= 0 {
			return fmt.Errorf("pass.repollDelays[%d] must be positive", i)
		}
	}
	if err := validateURL("oembed.endpoint", c.OEmbed.Endpoint); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// Logger builds the configured logger.
func (c *Config) Logger() *logging.EmbedMeshLogger {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return logging.NewSlogLogger(level, c.Logging.Format, false)
}

// OrchestratorConfig maps the pass settings.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		MaxConcurrentRenders: c.Pass.MaxConcurrentRenders,
		TopN:                 c.Pass.TopN,
		ParentContext:        c.Pass.ParentContext,
		RepollDelays:         c.Pass.RepollDelays,
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}
