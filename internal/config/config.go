// Package config loads the orchestrator's RuntimeConfig from environment
// variables with an optional YAML file overlay, tracking where each value
// came from. Scaled down from the teacher's internal/config/loader.go
// (file -> env -> override precedence, ValueSource provenance,
// functional-option Load) to the field set spec §6 names.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceFile    ValueSource = "file"
	SourceEnv     ValueSource = "environment"
)

// RuntimeConfig is the orchestrator's full runtime configuration (spec §6).
type RuntimeConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	LLMBaseURL    string  `yaml:"llm_base_url"`
	LLMAPIKey     string  `yaml:"llm_api_key"`
	LLMModel      string  `yaml:"llm_model"`
	LLMTemperature float64 `yaml:"llm_temperature"`

	SearchAPIBaseURL     string `yaml:"search_api_base_url"`
	SearchAPIKey         string `yaml:"search_api_key"`
	SearchHTMLFallbackURL string `yaml:"search_html_fallback_url"`

	StoreURL         string `yaml:"store_url"`
	StoreTTLSeconds  int    `yaml:"store_ttl_seconds"`

	MaxConcurrentGenerations      int `yaml:"max_concurrent_generations"`
	MaxConcurrentVerifications    int `yaml:"max_concurrent_verifications"`
	VerificationTimeoutSeconds    int `yaml:"verification_timeout_seconds"`

	MetaRecursionLimit int `yaml:"meta_recursion_limit"`
	TeamRecursionLimit int `yaml:"team_recursion_limit"`
	MaxToolRounds      int `yaml:"max_tool_rounds"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	OTelEnabled       bool   `yaml:"otel_enabled"`
	OTelOTLPEndpoint  string `yaml:"otel_otlp_endpoint"`

	ShutdownDrainSeconds int `yaml:"shutdown_drain_seconds"`
}

// StoreTTL is StoreTTLSeconds as a time.Duration.
func (c RuntimeConfig) StoreTTL() time.Duration {
	return time.Duration(c.StoreTTLSeconds) * time.Second
}

// VerificationTimeout is VerificationTimeoutSeconds as a time.Duration.
func (c RuntimeConfig) VerificationTimeout() time.Duration {
	return time.Duration(c.VerificationTimeoutSeconds) * time.Second
}

// ShutdownDrain is ShutdownDrainSeconds as a time.Duration.
func (c RuntimeConfig) ShutdownDrain() time.Duration {
	return time.Duration(c.ShutdownDrainSeconds) * time.Second
}

// Metadata records where each field's final value was resolved from.
type Metadata struct {
	sources map[string]ValueSource
}

// Source returns field's provenance, defaulting to SourceDefault.
func (m Metadata) Source(field string) ValueSource {
	if m.sources == nil {
		return SourceDefault
	}
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// EnvLookup resolves the value for an environment variable; overridable for
// tests the way the teacher's loader does.
type EnvLookup func(string) (string, bool)

// Option customizes Load's behavior.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	configPath string
}

// WithEnv supplies a custom environment lookup, used in tests.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithConfigPath points Load at a specific YAML file instead of the
// CONFIG_PATH environment variable.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithFileReader injects a custom file reader, used in tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = reader }
}

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) { return os.LookupEnv(key) }

// Load builds a RuntimeConfig by layering defaults, an optional YAML file,
// then environment variables (spec §6's env var table; env always wins over
// file, matching the teacher's file->env->override precedence with no
// override layer needed here).
func Load(opts ...Option) (RuntimeConfig, Metadata, error) {
	options := loadOptions{envLookup: DefaultEnvLookup, readFile: os.ReadFile}
	for _, opt := range opts {
		opt(&options)
	}

	meta := Metadata{sources: map[string]ValueSource{}}
	cfg := RuntimeConfig{
		HTTPAddr:                   ":8080",
		LLMBaseURL:                 "https://api.openai.com/v1",
		LLMModel:                   "gpt-4o-mini",
		LLMTemperature:             0.7,
		StoreTTLSeconds:            3600,
		MaxConcurrentGenerations:   3,
		MaxConcurrentVerifications: 5,
		VerificationTimeoutSeconds: 30,
		MetaRecursionLimit:         50,
		TeamRecursionLimit:         25,
		MaxToolRounds:              8,
		LogLevel:                   "info",
		LogFormat:                  "json",
		ShutdownDrainSeconds:       30,
	}

	if err := applyFile(&cfg, &meta, options); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}
	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}
	return cfg, meta, nil
}

func applyFile(cfg *RuntimeConfig, meta *Metadata, opts loadOptions) error {
	path := strings.TrimSpace(opts.configPath)
	if path == "" {
		if v, ok := opts.envLookup("CONFIG_PATH"); ok {
			path = strings.TrimSpace(v)
		}
	}
	if path == "" {
		return nil
	}
	data, err := opts.readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var file RuntimeConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	mergeNonZero(cfg, meta, file, SourceFile)
	return nil
}

// mergeNonZero copies every non-zero field of file onto cfg, recording
// source for the ones that changed. A hand-rolled field-by-field merge
// (rather than reflection) matches the teacher's applyFile style.
func mergeNonZero(cfg *RuntimeConfig, meta *Metadata, file RuntimeConfig, source ValueSource) {
	if file.HTTPAddr != "" {
		cfg.HTTPAddr = file.HTTPAddr
		meta.sources["http_addr"] = source
	}
	if file.LLMBaseURL != "" {
		cfg.LLMBaseURL = file.LLMBaseURL
		meta.sources["llm_base_url"] = source
	}
	if file.LLMAPIKey != "" {
		cfg.LLMAPIKey = file.LLMAPIKey
		meta.sources["llm_api_key"] = source
	}
	if file.LLMModel != "" {
		cfg.LLMModel = file.LLMModel
		meta.sources["llm_model"] = source
	}
	if file.LLMTemperature != 0 {
		cfg.LLMTemperature = file.LLMTemperature
		meta.sources["llm_temperature"] = source
	}
	if file.SearchAPIBaseURL != "" {
		cfg.SearchAPIBaseURL = file.SearchAPIBaseURL
		meta.sources["search_api_base_url"] = source
	}
	if file.SearchAPIKey != "" {
		cfg.SearchAPIKey = file.SearchAPIKey
		meta.sources["search_api_key"] = source
	}
	if file.SearchHTMLFallbackURL != "" {
		cfg.SearchHTMLFallbackURL = file.SearchHTMLFallbackURL
		meta.sources["search_html_fallback_url"] = source
	}
	if file.StoreURL != "" {
		cfg.StoreURL = file.StoreURL
		meta.sources["store_url"] = source
	}
	if file.StoreTTLSeconds != 0 {
		cfg.StoreTTLSeconds = file.StoreTTLSeconds
		meta.sources["store_ttl_seconds"] = source
	}
	if file.MaxConcurrentGenerations != 0 {
		cfg.MaxConcurrentGenerations = file.MaxConcurrentGenerations
		meta.sources["max_concurrent_generations"] = source
	}
	if file.MaxConcurrentVerifications != 0 {
		cfg.MaxConcurrentVerifications = file.MaxConcurrentVerifications
		meta.sources["max_concurrent_verifications"] = source
	}
	if file.VerificationTimeoutSeconds != 0 {
		cfg.VerificationTimeoutSeconds = file.VerificationTimeoutSeconds
		meta.sources["verification_timeout_seconds"] = source
	}
	if file.MetaRecursionLimit != 0 {
		cfg.MetaRecursionLimit = file.MetaRecursionLimit
		meta.sources["meta_recursion_limit"] = source
	}
	if file.TeamRecursionLimit != 0 {
		cfg.TeamRecursionLimit = file.TeamRecursionLimit
		meta.sources["team_recursion_limit"] = source
	}
	if file.MaxToolRounds != 0 {
		cfg.MaxToolRounds = file.MaxToolRounds
		meta.sources["max_tool_rounds"] = source
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
		meta.sources["log_level"] = source
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
		meta.sources["log_format"] = source
	}
	if file.OTelOTLPEndpoint != "" {
		cfg.OTelOTLPEndpoint = file.OTelOTLPEndpoint
		meta.sources["otel_otlp_endpoint"] = source
	}
	if file.OTelEnabled {
		cfg.OTelEnabled = true
		meta.sources["otel_enabled"] = source
	}
	if file.ShutdownDrainSeconds != 0 {
		cfg.ShutdownDrainSeconds = file.ShutdownDrainSeconds
		meta.sources["shutdown_drain_seconds"] = source
	}
}

func applyEnv(cfg *RuntimeConfig, meta *Metadata, lookup EnvLookup) error {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}
	str := func(key, field string, dest *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dest = v
			meta.sources[field] = SourceEnv
		}
	}
	str("HTTP_ADDR", "http_addr", &cfg.HTTPAddr)
	str("LLM_BASE_URL", "llm_base_url", &cfg.LLMBaseURL)
	str("LLM_API_KEY", "llm_api_key", &cfg.LLMAPIKey)
	str("LLM_MODEL", "llm_model", &cfg.LLMModel)
	str("SEARCH_API_BASE_URL", "search_api_base_url", &cfg.SearchAPIBaseURL)
	str("SEARCH_API_KEY", "search_api_key", &cfg.SearchAPIKey)
	str("SEARCH_HTML_FALLBACK_URL", "search_html_fallback_url", &cfg.SearchHTMLFallbackURL)
	str("STORE_URL", "store_url", &cfg.StoreURL)
	str("LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("LOG_FORMAT", "log_format", &cfg.LogFormat)
	str("OTEL_OTLP_ENDPOINT", "otel_otlp_endpoint", &cfg.OTelOTLPEndpoint)

	intField := func(key, field string, dest *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dest = parsed
		meta.sources[field] = SourceEnv
		return nil
	}
	for _, f := range []struct {
		key, field string
		dest       *int
	}{
		{"STORE_TTL_SECONDS", "store_ttl_seconds", &cfg.StoreTTLSeconds},
		{"MAX_CONCURRENT_GENERATIONS", "max_concurrent_generations", &cfg.MaxConcurrentGenerations},
		{"MAX_CONCURRENT_VERIFICATIONS", "max_concurrent_verifications", &cfg.MaxConcurrentVerifications},
		{"VERIFICATION_TIMEOUT_SECONDS", "verification_timeout_seconds", &cfg.VerificationTimeoutSeconds},
		{"META_RECURSION_LIMIT", "meta_recursion_limit", &cfg.MetaRecursionLimit},
		{"TEAM_RECURSION_LIMIT", "team_recursion_limit", &cfg.TeamRecursionLimit},
		{"MAX_TOOL_ROUNDS", "max_tool_rounds", &cfg.MaxToolRounds},
		{"SHUTDOWN_DRAIN_SECONDS", "shutdown_drain_seconds", &cfg.ShutdownDrainSeconds},
	} {
		if err := intField(f.key, f.field, f.dest); err != nil {
			return err
		}
	}

	if v, ok := lookup("LLM_TEMPERATURE"); ok && v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse LLM_TEMPERATURE: %w", err)
		}
		cfg.LLMTemperature = parsed
		meta.sources["llm_temperature"] = SourceEnv
	}
	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse OTEL_ENABLED: %w", err)
		}
		cfg.OTelEnabled = parsed
		meta.sources["otel_enabled"] = SourceEnv
	}
	return nil
}
