// Package config provides YAML configuration parsing for flux applications.
//
// This package lets the flux binary build a registry, its stores and HTTP
// APIs from a configuration file, as an alternative to wiring them in code.
//
// Example configuration:
//
//	port: 8080
//	log_level: info
//
//	stores:
//	  - name: users
//	  - name: todos
//	    initial_state:
//	      items: []
//
//	apis:
//	  - name: users-api
//	    base_url: ${USERS_API:-http://localhost:9999}
//	    timeout: 5s
//	    headers:
//	      Authorization: Bearer ${API_TOKEN}
//
//	constants:
//	  users: [RECEIVE_USER, DELETE_USER]
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8080
	defaultActionLogSize = 500
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the devtools HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// ActionLogSize is the number of dispatched actions kept for devtools.
	// Defaults to 500.
	ActionLogSize int `yaml:"action_log_size"`

	// Stores defines the stores to create, in order.
	Stores []StoreConfig `yaml:"stores"`

	// APIs defines the HTTP APIs to create.
	APIs []APIConfig `yaml:"apis"`

	// Constants maps group names to action type names.
	Constants map[string][]string `yaml:"constants"`
}

// StoreConfig defines a single store.
type StoreConfig struct {
	// Name identifies the store. Must be unique.
	Name string `yaml:"name"`

	// InitialState is the store's starting state (any YAML value).
	InitialState any `yaml:"initial_state"`
}

// APIConfig defines a single HTTP API.
type APIConfig struct {
	// Name identifies the API. Must be unique.
	Name string `yaml:"name"`

	// BaseURL is prefixed to every request path.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with every request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in API base URLs and header values.
// Defaults are applied for Port (8080), LogLevel (info) and
// ActionLogSize (500).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ActionLogSize == 0 {
		cfg.ActionLogSize = defaultActionLogSize
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.ActionLogSize < 0 {
		return fmt.Errorf("action_log_size cannot be negative, got %d", c.ActionLogSize)
	}

	storeNames := make(map[string]struct{}, len(c.Stores))
	for i := range c.Stores {
		st := &c.Stores[i]

		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("stores[%d]: name is required", i)
		}
		if _, exists := storeNames[st.Name]; exists {
			return fmt.Errorf("stores[%d] (%s): duplicate store name", i, st.Name)
		}
		storeNames[st.Name] = struct{}{}
	}

	apiNames := make(map[string]struct{}, len(c.APIs))
	for i := range c.APIs {
		api := &c.APIs[i]

		if strings.TrimSpace(api.Name) == "" {
			return fmt.Errorf("apis[%d]: name is required", i)
		}
		if _, exists := apiNames[api.Name]; exists {
			return fmt.Errorf("apis[%d] (%s): duplicate api name", i, api.Name)
		}
		apiNames[api.Name] = struct{}{}

		if api.BaseURL == "" {
			return fmt.Errorf("apis[%d] (%s): base_url is required", i, api.Name)
		}
		expanded, err := expandEnvVars(api.BaseURL)
		if err != nil {
			return fmt.Errorf("apis[%d] (%s): base_url: %w", i, api.Name, err)
		}
		api.BaseURL = expanded

		parsedURL, err := url.Parse(api.BaseURL)
		if err != nil {
			return fmt.Errorf("apis[%d] (%s): invalid base_url: %w", i, api.Name, err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("apis[%d] (%s): base_url scheme must be http or https, got %q", i, api.Name, parsedURL.Scheme)
		}

		for k, v := range api.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("apis[%d] (%s): headers[%s]: %w", i, api.Name, k, err)
			}
			api.Headers[k] = expanded
		}

		if api.Timeout != 0 {
			if api.Timeout.Duration() < 0 {
				return fmt.Errorf("apis[%d] (%s): timeout cannot be negative, got %s",
					i, api.Name, api.Timeout.Duration())
			}
			if api.Timeout.Duration() < time.Second {
				return fmt.Errorf("apis[%d] (%s): timeout must be at least 1s if specified, got %s",
					i, api.Name, api.Timeout.Duration())
			}
		}
	}

	for group, names := range c.Constants {
		if strings.TrimSpace(group) == "" {
			return errors.New("constants: group name cannot be empty")
		}
		if len(names) == 0 {
			return fmt.Errorf("constants[%s]: at least one name is required", group)
		}
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("constants[%s]: names cannot be empty", group)
			}
			if _, exists := seen[name]; exists {
				return fmt.Errorf("constants[%s]: duplicate name %q", group, name)
			}
			seen[name] = struct{}{}
		}
	}

	if len(c.Stores) == 0 {
		return errors.New("at least one store must be defined")
	}

	return nil
}
