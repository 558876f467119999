// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the switchAIFree server.
// It handles loading and parsing YAML configuration files, applies environment
// overrides, and provides structured access to provider credentials, model
// selection tunables, sampling profiles, sanitizer settings and the management API.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/constant"
	"github.com/traylinx/switchAIFree/internal/util"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LogLevel is the logrus level name used when Debug is false.
	LogLevel string `yaml:"log-level" json:"log-level"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory holding main.log when LoggingToFile is set.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// OpenRouter holds the provider credential and endpoints.
	OpenRouter OpenRouterConfig `yaml:"openrouter" json:"openrouter"`

	// Selection controls catalog refresh and smoke testing.
	Selection SelectionConfig `yaml:"selection" json:"selection"`

	// Sampling holds the production and smoke-test sampling profiles.
	Sampling SamplingConfig `yaml:"sampling" json:"sampling"`

	// Sanitizer configures output rewriting for the display surface.
	Sanitizer SanitizerConfig `yaml:"sanitizer" json:"sanitizer"`

	// Messages overrides the user-facing strings returned when no text can be produced.
	Messages MessagesConfig `yaml:"messages" json:"messages"`

	// ResourceGuard configures the process memory ceiling.
	ResourceGuard ResourceGuardConfig `yaml:"resource-guard" json:"resource-guard"`

	// API configures the management HTTP surface.
	API APIConfig `yaml:"api" json:"-"`

	// Audit configures the model transition audit log.
	Audit AuditConfig `yaml:"audit" json:"audit"`

	// Hooks configures event automation rules.
	Hooks HooksConfig `yaml:"hooks" json:"hooks"`
}

// OpenRouterConfig holds provider connection settings.
type OpenRouterConfig struct {
	// APIKey is the bearer credential. Empty disables every network call.
	APIKey string `yaml:"api-key" json:"-"`

	// BaseURL is the provider API root.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// DefaultModel is used until a smoke test selects a verified model.
	// It is cleared when it lacks the free-tier marker.
	DefaultModel string `yaml:"default-model" json:"default-model"`

	// RequestTimeout bounds every catalog and completion call ("15s").
	RequestTimeout string `yaml:"request-timeout" json:"request-timeout"`

	// AppTitle and Referer identify this client to the provider.
	AppTitle string `yaml:"app-title" json:"app-title"`
	Referer  string `yaml:"referer" json:"referer"`

	// Headers adds custom headers to every provider request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// SelectionConfig holds catalog refresh and smoke-test settings.
type SelectionConfig struct {
	// AutoSelect runs smoke tests after each catalog refresh.
	AutoSelect bool `yaml:"auto-select" json:"auto-select"`

	// SmokeTestLimit caps how many candidates are probed per refresh or fallback.
	SmokeTestLimit int `yaml:"smoke-test-limit" json:"smoke-test-limit"`

	// SmokeTestDelay is the pause between unsuccessful probes ("500ms").
	SmokeTestDelay string `yaml:"smoke-test-delay" json:"smoke-test-delay"`

	// SmokeTestPrompt and SmokeTestSystem override the probe prompt pair.
	SmokeTestPrompt string `yaml:"smoke-test-prompt" json:"smoke-test-prompt"`
	SmokeTestSystem string `yaml:"smoke-test-system" json:"smoke-test-system"`

	// RefreshInterval is the period of the scheduled catalog refresh ("168h").
	RefreshInterval string `yaml:"refresh-interval" json:"refresh-interval"`
}

// Sampling is one set of completion parameters.
type Sampling struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	TopP        float64 `yaml:"top-p" json:"top-p"`
	MaxTokens   int     `yaml:"max-tokens" json:"max-tokens"`
}

// SamplingConfig holds the two sampling profiles.
type SamplingConfig struct {
	Production Sampling `yaml:"production" json:"production"`
	SmokeTest  Sampling `yaml:"smoke-test" json:"smoke-test"`
}

// SanitizerConfig controls hashtag rewriting.
type SanitizerConfig struct {
	// CurrentYear replaces the year in stale year-tagged hashtags.
	CurrentYear string `yaml:"current-year" json:"current-year"`

	// RewriteHashtags are tag stems whose year suffix is rewritten (e.g. "Trump").
	RewriteHashtags []string `yaml:"rewrite-hashtags" json:"rewrite-hashtags"`

	// DropHashtags are tag stems removed entirely when year-tagged (e.g. "Biden").
	DropHashtags []string `yaml:"drop-hashtags" json:"drop-hashtags"`
}

// MessagesConfig holds user-facing strings. Empty fields fall back to defaults.
type MessagesConfig struct {
	NoModel          string `yaml:"no-model" json:"no-model"`
	RateLimited      string `yaml:"rate-limited" json:"rate-limited"`
	Refusal          string `yaml:"refusal" json:"refusal"`
	ReasoningLeak    string `yaml:"reasoning-leak" json:"reasoning-leak"`
	EmptyContent     string `yaml:"empty-content" json:"empty-content"`
	InvalidResponse  string `yaml:"invalid-response" json:"invalid-response"`
	MissingAPIKey    string `yaml:"missing-api-key" json:"missing-api-key"`
	ProviderErrorFmt string `yaml:"provider-error" json:"provider-error"`
	RequestFailed    string `yaml:"request-failed" json:"request-failed"`
}

// ResourceGuardConfig configures the memory watchdog.
type ResourceGuardConfig struct {
	// MemoryLimitMB terminates the process when RSS exceeds it. 0 disables the check.
	MemoryLimitMB int `yaml:"memory-limit-mb" json:"memory-limit-mb"`

	// ReportInterval is the period of the resource usage report ("5m").
	ReportInterval string `yaml:"report-interval" json:"report-interval"`
}

// APIConfig configures the management HTTP server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// ManagementKey guards /v0 routes. Plaintext values are bcrypt-hashed on load.
	ManagementKey string `yaml:"management-key"`
}

// AuditConfig configures the JSON-lines model transition log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	LogPath string `yaml:"log-path" json:"log-path"`
}

// HooksConfig configures the event hook rules directory.
type HooksConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, applies environment variable overrides,
// and returns it.
//
// Parameters:
//   - configFile: The path to the YAML configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the configuration could not be loaded
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, defaults plus environment overrides are returned.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if !optional || !(os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data = nil
	}

	if len(data) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.Sanitize()

	if cfg.API.ManagementKey != "" && !looksLikeBcrypt(cfg.API.ManagementKey) {
		hashed, errHash := hashSecret(cfg.API.ManagementKey)
		if errHash != nil {
			return nil, fmt.Errorf("failed to hash management key: %w", errHash)
		}
		cfg.API.ManagementKey = hashed
	}

	return cfg, nil
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   "logs",
		OpenRouter: OpenRouterConfig{
			BaseURL:        constant.OpenRouterBaseURL,
			DefaultModel:   constant.DefaultModel,
			RequestTimeout: "15s",
			AppTitle:       constant.AppTitle,
			Referer:        constant.AppReferer,
		},
		Selection: SelectionConfig{
			AutoSelect:      true,
			SmokeTestLimit:  5,
			SmokeTestDelay:  "500ms",
			SmokeTestPrompt: DefaultSmokeTestPrompt,
			RefreshInterval: "168h",
		},
		Sampling: SamplingConfig{
			Production: Sampling{Temperature: 0.9, TopP: 0.9, MaxTokens: 256},
			SmokeTest:  Sampling{Temperature: 0.8, TopP: 0.85, MaxTokens: 120},
		},
		Sanitizer: SanitizerConfig{
			CurrentYear:     fmt.Sprintf("%d", time.Now().Year()),
			RewriteHashtags: []string{"Trump"},
			DropHashtags:    []string{"Biden"},
		},
		ResourceGuard: ResourceGuardConfig{
			MemoryLimitMB:  1900,
			ReportInterval: "5m",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8318,
		},
		Audit: AuditConfig{
			Enabled: true,
			LogPath: "./logs/model_audit.log",
		},
		Hooks: HooksConfig{
			Dir: "hooks",
		},
	}
}

// DefaultSmokeTestPrompt is the user half of the probe prompt pair.
const DefaultSmokeTestPrompt = "Write a savage Trump-style joke about Xi Jinping that pulls no punches."

// Sanitize validates and normalizes the configuration, restoring defaults for invalid values.
func (cfg *Config) Sanitize() {
	if cfg == nil {
		return
	}
	def := Default()

	or := &cfg.OpenRouter
	or.APIKey = strings.TrimSpace(or.APIKey)
	or.BaseURL = strings.TrimSuffix(strings.TrimSpace(or.BaseURL), "/")
	if or.BaseURL == "" {
		or.BaseURL = def.OpenRouter.BaseURL
	}
	or.DefaultModel = strings.TrimSpace(or.DefaultModel)
	if or.DefaultModel != "" && !util.HasFreeMarker(or.DefaultModel) {
		log.Warnf("Configured default model %s does not contain 'free'; AI replies disabled until a free model is selected.", or.DefaultModel)
		or.DefaultModel = ""
	}
	if d, err := time.ParseDuration(or.RequestTimeout); err != nil || d <= 0 {
		or.RequestTimeout = def.OpenRouter.RequestTimeout
	}
	if strings.TrimSpace(or.AppTitle) == "" {
		or.AppTitle = def.OpenRouter.AppTitle
	}
	if strings.TrimSpace(or.Referer) == "" {
		or.Referer = def.OpenRouter.Referer
	}
	or.Headers = NormalizeHeaders(or.Headers)

	sel := &cfg.Selection
	if sel.SmokeTestLimit < 1 {
		sel.SmokeTestLimit = 1
	}
	if d, err := time.ParseDuration(sel.SmokeTestDelay); err != nil || d < 0 {
		sel.SmokeTestDelay = def.Selection.SmokeTestDelay
	}
	sel.SmokeTestPrompt = strings.TrimSpace(sel.SmokeTestPrompt)
	if sel.SmokeTestPrompt == "" {
		sel.SmokeTestPrompt = DefaultSmokeTestPrompt
	}
	sel.SmokeTestSystem = strings.TrimSpace(sel.SmokeTestSystem)
	if d, err := time.ParseDuration(sel.RefreshInterval); err != nil || d < time.Hour {
		sel.RefreshInterval = def.Selection.RefreshInterval
	}

	sanitizeSampling(&cfg.Sampling.Production, def.Sampling.Production)
	sanitizeSampling(&cfg.Sampling.SmokeTest, def.Sampling.SmokeTest)

	san := &cfg.Sanitizer
	san.CurrentYear = strings.TrimSpace(san.CurrentYear)
	if san.CurrentYear == "" {
		san.CurrentYear = def.Sanitizer.CurrentYear
	}
	san.RewriteHashtags = normalizeTags(san.RewriteHashtags)
	san.DropHashtags = normalizeTags(san.DropHashtags)

	if cfg.ResourceGuard.MemoryLimitMB < 0 {
		cfg.ResourceGuard.MemoryLimitMB = 0
	}
	if d, err := time.ParseDuration(cfg.ResourceGuard.ReportInterval); err != nil || d < time.Second {
		cfg.ResourceGuard.ReportInterval = def.ResourceGuard.ReportInterval
	}

	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		cfg.API.Port = def.API.Port
	}
	cfg.API.ManagementKey = strings.TrimSpace(cfg.API.ManagementKey)

	if strings.TrimSpace(cfg.Audit.LogPath) == "" {
		cfg.Audit.LogPath = def.Audit.LogPath
	}
	cfg.Hooks.Dir = strings.TrimSpace(cfg.Hooks.Dir)
	if cfg.Hooks.Dir == "" {
		cfg.Hooks.Dir = def.Hooks.Dir
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		cfg.LogDir = def.LogDir
	}
}

func sanitizeSampling(s *Sampling, def Sampling) {
	if s.Temperature < 0 || s.Temperature > 2 {
		s.Temperature = def.Temperature
	}
	if s.TopP <= 0 || s.TopP > 1 {
		s.TopP = def.TopP
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = def.MaxTokens
	}
}

// RequestTimeoutDuration returns the parsed per-call timeout.
func (cfg *Config) RequestTimeoutDuration() time.Duration {
	return mustDuration(cfg.OpenRouter.RequestTimeout, 15*time.Second)
}

// SmokeTestDelayDuration returns the parsed inter-probe delay.
func (cfg *Config) SmokeTestDelayDuration() time.Duration {
	return mustDuration(cfg.Selection.SmokeTestDelay, 500*time.Millisecond)
}

// RefreshIntervalDuration returns the parsed catalog refresh period.
func (cfg *Config) RefreshIntervalDuration() time.Duration {
	return mustDuration(cfg.Selection.RefreshInterval, 168*time.Hour)
}

// ReportIntervalDuration returns the parsed resource report period.
func (cfg *Config) ReportIntervalDuration() time.Duration {
	return mustDuration(cfg.ResourceGuard.ReportInterval, 5*time.Minute)
}

// ListenAddr returns host:port for the management API.
func (cfg *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
}

func mustDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// NormalizeHeaders trims header keys and values and removes empty pairs.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	clean := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		clean[key] = val
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

// normalizeTags trims, strips a leading '#', and deduplicates hashtag stems.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		tag := strings.TrimPrefix(strings.TrimSpace(raw), "#")
		key := strings.ToLower(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return len(s) > 4 && (s[:4] == "$2a$" || s[:4] == "$2b$" || s[:4] == "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
