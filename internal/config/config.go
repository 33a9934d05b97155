// Package config loads the immutable engine configuration. A compiled-in
// default is always available; an optional YAML file overlays it, and
// ${VAR} references in either expand from the environment.
package config

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML embed.FS

// ClassifierConfig addresses the external classification service.
type ClassifierConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// RetryConfig bounds the gateway's retry loop.
type RetryConfig struct {
	MaxAttempts           int `yaml:"max_attempts"`
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds"`
	BackoffBaseMS         int `yaml:"backoff_base_ms"`
}

// AttemptTimeout returns the per-attempt deadline as a duration.
func (r RetryConfig) AttemptTimeout() time.Duration {
	return time.Duration(r.AttemptTimeoutSeconds) * time.Second
}

// BackoffBase returns the first backoff interval as a duration.
func (r RetryConfig) BackoffBase() time.Duration {
	return time.Duration(r.BackoffBaseMS) * time.Millisecond
}

// GapConfig sets the underserved-category thresholds. A category is
// underserved when its count or share is at or below the threshold.
type GapConfig struct {
	MinCount int     `yaml:"min_count"`
	MinShare float64 `yaml:"min_share"`
}

// ScoreBand is the [Min, Max] strategic-fit range for one thesis tag.
type ScoreBand struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Midpoint is the concrete score assigned inside the band.
func (b ScoreBand) Midpoint() int {
	return (b.Min + b.Max) / 2
}

// SourceProfile carries per-source defaults. PinCategory keeps the
// configured category even when the text looks like funding news.
type SourceProfile struct {
	Name            string `yaml:"name"`
	DefaultCategory string `yaml:"default_category"`
	PinCategory     bool   `yaml:"pin_category"`
}

// Config is the full engine configuration. It is built once at startup
// and treated as read-only afterwards.
type Config struct {
	Classifier   ClassifierConfig `yaml:"classifier"`
	Concurrency  int              `yaml:"concurrency"`
	RateLimitRPS float64          `yaml:"rate_limit_rps"`
	Retry        RetryConfig      `yaml:"retry"`
	Gap          GapConfig        `yaml:"gap"`

	FundingKeywords []string             `yaml:"funding_keywords"`
	UtilityKeywords []string             `yaml:"utility_keywords"`
	StageVocabulary []string             `yaml:"stage_vocabulary"`
	ScoreBands      map[string]ScoreBand `yaml:"score_bands"`
	SourceProfiles  []SourceProfile      `yaml:"source_profiles"`
}

// Profile looks up a source profile by name. The second return is false
// when the source is unknown.
func (c *Config) Profile(sourceName string) (SourceProfile, bool) {
	for _, p := range c.SourceProfiles {
		if p.Name == sourceName {
			return p, true
		}
	}
	return SourceProfile{}, false
}

// Band resolves the score band for a thesis tag, falling back to the
// "Other" band for unmatched tags.
func (c *Config) Band(tag string) ScoreBand {
	if b, ok := c.ScoreBands[tag]; ok {
		return b
	}
	if b, ok := c.ScoreBands["Other"]; ok {
		return b
	}
	return ScoreBand{Min: 50, Max: 59}
}

// Load builds a Config from the embedded default, overlaid by the YAML
// file at path when path is non-empty. ${VAR} references expand from the
// environment in both documents.
func Load(path string) (*Config, error) {
	data, err := defaultYAML.ReadFile("default.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded default config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded default config: %w", err)
	}

	if path != "" {
		overlay, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(overlay))), &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 2.0
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.AttemptTimeoutSeconds <= 0 {
		c.Retry.AttemptTimeoutSeconds = 30
	}
	if c.Retry.BackoffBaseMS <= 0 {
		c.Retry.BackoffBaseMS = 500
	}
	if c.Gap.MinCount <= 0 {
		c.Gap.MinCount = 1
	}
	if c.Gap.MinShare <= 0 {
		c.Gap.MinShare = 0.10
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "llama3.1:8b"
	}
}

func (c *Config) validate() error {
	if len(c.StageVocabulary) == 0 {
		return fmt.Errorf("config: stage_vocabulary must not be empty")
	}
	if len(c.FundingKeywords) == 0 {
		return fmt.Errorf("config: funding_keywords must not be empty")
	}
	for name, b := range c.ScoreBands {
		if b.Min > b.Max || b.Min < 0 || b.Max > 100 {
			return fmt.Errorf("config: score band %q has invalid range [%d,%d]", name, b.Min, b.Max)
		}
	}
	return nil
}
