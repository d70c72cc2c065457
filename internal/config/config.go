package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"dario.cat/mergo"

	"github.com/dshills/agriguard/internal/advisory"
)

// Config represents the agriguard configuration.
type Config struct {
	Provider               string       `json:"provider"`
	Model                  string       `json:"model"`
	ProviderTimeoutSeconds int          `json:"providerTimeoutSeconds"`
	MaxTokens              int          `json:"maxTokens"`
	FallbackPolicy         string       `json:"fallbackPolicy"`
	CatalogFallback        bool         `json:"catalogFallback"`
	CatalogFile            string       `json:"catalogFile,omitempty"`
	PromptFile             string       `json:"promptFile,omitempty"`
	MinConfidence          float64      `json:"minConfidence"`
	LookupConcurrency      int          `json:"lookupConcurrency"`
	Server                 ServerConfig `json:"server"`
	NATS                   NATSConfig   `json:"nats"`
	Log                    LogConfig    `json:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr      string `json:"addr"`
	BodyLimit string `json:"bodyLimit"`
}

// NATSConfig controls the NATS service.
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:               "anthropic",
		Model:                  "claude-sonnet-4-20250514",
		ProviderTimeoutSeconds: 30,
		MaxTokens:              1024,
		FallbackPolicy:         string(advisory.FallbackCache),
		MinConfidence:          0.5,
		LookupConcurrency:      4,
		Server: ServerConfig{
			Addr:      ":8080",
			BodyLimit: "1M",
		},
		NATS: NATSConfig{
			URL: "nats://127.0.0.1:4222",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ProviderTimeout returns the per-fetch timeout.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// ConfigDir returns the platform-appropriate config directory for agriguard.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agriguard"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "agriguard"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "agriguard"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "agriguard"), nil
	default:
		return filepath.Join(home, ".config", "agriguard"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	if err := mergeFile(&cfg, fileCfg); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the non-zero fields of src onto dst. A file cannot
// switch a boolean that defaults to true back off, so every boolean key
// defaults to false.
func mergeFile(dst *Config, src Config) error {
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("merging config file: %w", err)
	}
	return nil
}

func mergeEnv(cfg *Config) error {
	for _, key := range Keys() {
		env := EnvVar(key)
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for _, key := range Keys() {
		v, ok := overrides[key]
		if !ok || v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return fmt.Errorf("flag %s: %w", key, err)
		}
	}
	return nil
}

var keys = []string{
	"provider",
	"model",
	"providerTimeoutSeconds",
	"maxTokens",
	"fallbackPolicy",
	"catalogFallback",
	"catalogFile",
	"promptFile",
	"minConfidence",
	"lookupConcurrency",
	"server.addr",
	"server.bodyLimit",
	"nats.enabled",
	"nats.url",
	"log.level",
	"log.format",
}

// Keys returns every settable config key in display order.
func Keys() []string {
	return append([]string(nil), keys...)
}

// EnvVar returns the environment variable for key, e.g.
// "server.bodyLimit" becomes AGRIGUARD_SERVER_BODY_LIMIT.
func EnvVar(key string) string {
	var b strings.Builder
	b.WriteString("AGRIGUARD_")
	for i, r := range key {
		switch {
		case r == '.':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && key[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "providerTimeoutSeconds":
		n, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.ProviderTimeoutSeconds = n
	case "maxTokens":
		n, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.MaxTokens = n
	case "fallbackPolicy":
		p, err := advisory.ParseFallbackPolicy(value)
		if err != nil {
			return err
		}
		cfg.FallbackPolicy = string(p)
	case "catalogFallback":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("catalogFallback must be true or false: %w", err)
		}
		cfg.CatalogFallback = b
	case "catalogFile":
		cfg.CatalogFile = value
	case "promptFile":
		cfg.PromptFile = value
	case "minConfidence":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("minConfidence must be a number: %w", err)
		}
		if f <= 0 || f > 1 {
			return fmt.Errorf("minConfidence must be greater than 0 and at most 1, got %v", f)
		}
		cfg.MinConfidence = f
	case "lookupConcurrency":
		n, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		cfg.LookupConcurrency = n
	case "server.addr":
		cfg.Server.Addr = value
	case "server.bodyLimit":
		cfg.Server.BodyLimit = value
	case "nats.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("nats.enabled must be true or false: %w", err)
		}
		cfg.NATS.Enabled = b
	case "nats.url":
		cfg.NATS.URL = value
	case "log.level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("log.level must be debug, info, warn or error, got %q", value)
		}
		cfg.Log.Level = value
	case "log.format":
		switch value {
		case "text", "json":
		default:
			return fmt.Errorf("log.format must be text or json, got %q", value)
		}
		cfg.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
