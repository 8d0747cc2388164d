package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parlemint/debatsum/debat"
)

type Config struct {
	InPath       string
	OutPath      string
	Model        string
	BaseURL      string
	APIKey       string
	SettingsPath string

	MaxChunkSize int
	Concurrency  int
	FactCheck    bool
	Pretty       bool
	Verbose      bool
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutPath == "" {
		return errors.New("missing -out")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.MaxChunkSize <= 0 {
		return errors.New("max-chunk-size must be > 0")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Model:        "deepseek-chat",
		BaseURL:      "https://api.deepseek.com/v1",
		MaxChunkSize: 30000,
		Concurrency:  1,
	}
}

// Settings is the optional YAML tuning file. Zero values mean "use the
// built-in default".
type Settings struct {
	PartyCodes            []string `yaml:"party_codes"`
	PromptTruncationLimit int      `yaml:"prompt_truncation_limit"`
	MinRequestInterval    float64  `yaml:"min_request_interval"`
	MaxRetries            *int     `yaml:"max_retries"`
	FactCheckingEnabled   bool     `yaml:"fact_checking_enabled"`
	AnalysisMaxTokens     int64    `yaml:"analysis_max_tokens"`
	SynthesisMaxTokens    int64    `yaml:"synthesis_max_tokens"`
	Temperature           *float64 `yaml:"temperature"`
}

func defaultSettings() Settings {
	return Settings{
		PromptTruncationLimit: 10000,
		MinRequestInterval:    1.0,
	}
}

func loadSettings(path string) (Settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if s.MinRequestInterval < 0 {
		return Settings{}, errors.New("min_request_interval must be >= 0")
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return Settings{}, errors.New("max_retries must be >= 0")
	}
	return s, nil
}

func (s Settings) requestInterval() time.Duration {
	return time.Duration(s.MinRequestInterval * float64(time.Second))
}

func (s Settings) maxRetries() int {
	if s.MaxRetries == nil {
		return 3
	}
	return *s.MaxRetries
}

// pipelineOptions merges the flag config and the settings file into the
// library's option struct.
func pipelineOptions(cfg Config, s Settings) debat.Options {
	opts := debat.DefaultOptions()
	opts.MaxChunkSize = cfg.MaxChunkSize
	opts.Concurrency = cfg.Concurrency
	opts.FactChecking = cfg.FactCheck || s.FactCheckingEnabled
	if s.PartyCodes != nil {
		opts.PartyCodes = s.PartyCodes
	}
	if s.PromptTruncationLimit > 0 {
		opts.PromptTruncationLimit = s.PromptTruncationLimit
	}
	if opts.PromptTruncationLimit > opts.MaxChunkSize {
		opts.PromptTruncationLimit = opts.MaxChunkSize
	}
	if s.AnalysisMaxTokens > 0 {
		opts.AnalysisMaxTokens = s.AnalysisMaxTokens
	}
	if s.SynthesisMaxTokens > 0 {
		opts.SynthesisMaxTokens = s.SynthesisMaxTokens
	}
	if s.Temperature != nil {
		opts.Temperature = *s.Temperature
	}
	return opts
}
