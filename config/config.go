// Package config loads the workspace tool's configuration.
//
// Settings come from a YAML file, then XDAO_COMMONS_* environment variables,
// then command-line flags applied by the caller. Every field has a default.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/commons/compliance"
	"xdao.co/commons/keys"
	"xdao.co/commons/storage/registry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "XDAO_COMMONS_"

// Config is the complete tool configuration.
type Config struct {
	// WorkspaceDir holds the default localfs store.
	WorkspaceDir string `yaml:"workspace_dir"`
	// KeyDir holds participant seeds (see keys.KeyStore).
	KeyDir  string        `yaml:"key_dir"`
	Signing SigningConfig `yaml:"signing"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
}

type SigningConfig struct {
	// Mode is permissive or strict.
	Mode string `yaml:"mode"`
	// Algorithm is ed25519 or dilithium3.
	Algorithm string `yaml:"algorithm"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	// Backend is a storage/registry backend name.
	Backend     string        `yaml:"backend"`
	RedisURL    string        `yaml:"redis_url"`
	RedisPrefix string        `yaml:"redis_prefix"`
	GRPCTarget  string        `yaml:"grpc_target"`
	Timeout     time.Duration `yaml:"timeout"`
	// Mirrors receive a copy of every snapshot and head move.
	Mirrors []MirrorConfig `yaml:"mirrors,omitempty"`
}

// MirrorConfig is one extra store. Dir defaults to nothing: a localfs mirror
// must name its directory.
type MirrorConfig struct {
	ID          string        `yaml:"id"`
	Backend     string        `yaml:"backend"`
	Dir         string        `yaml:"dir"`
	RedisURL    string        `yaml:"redis_url"`
	RedisPrefix string        `yaml:"redis_prefix"`
	GRPCTarget  string        `yaml:"grpc_target"`
	Timeout     time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config rooted at ~/.xdao/commons.
func DefaultConfig() *Config {
	base := filepath.Join(".xdao", "commons")
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, base)
	}
	return &Config{
		WorkspaceDir: filepath.Join(base, "workspaces"),
		KeyDir:       filepath.Join(base, "keys"),
		Signing: SigningConfig{
			Mode:      compliance.Permissive.String(),
			Algorithm: string(keys.Ed25519),
		},
		Store: StoreConfig{
			Backend: "localfs",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides fields from environment variables named
// XDAO_COMMONS_<UPPER_SNAKE_PATH>, e.g. XDAO_COMMONS_STORE_BACKEND.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"WORKSPACE_DIR":      &c.WorkspaceDir,
		"KEY_DIR":            &c.KeyDir,
		"SIGNING_MODE":       &c.Signing.Mode,
		"SIGNING_ALGORITHM":  &c.Signing.Algorithm,
		"STORE_BACKEND":      &c.Store.Backend,
		"STORE_REDIS_URL":    &c.Store.RedisURL,
		"STORE_REDIS_PREFIX": &c.Store.RedisPrefix,
		"STORE_GRPC_TARGET":  &c.Store.GRPCTarget,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(EnvPrefix + "STORE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sSTORE_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Store.Timeout = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.ComplianceMode(); err != nil {
		return fmt.Errorf("config: signing.mode: %w", err)
	}
	if _, err := c.Algorithm(); err != nil {
		return fmt.Errorf("config: signing.algorithm: %w", err)
	}
	if c.Store.Backend == "" {
		return errors.New("config: store.backend is required")
	}
	if c.Store.Timeout < 0 {
		return errors.New("config: store.timeout must not be negative")
	}
	for i, m := range c.Store.Mirrors {
		if m.Backend == "" {
			return fmt.Errorf("config: store.mirrors[%d].backend is required", i)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

// ComplianceMode parses Signing.Mode.
func (c *Config) ComplianceMode() (compliance.ComplianceMode, error) {
	return compliance.Parse(c.Signing.Mode)
}

// Algorithm parses Signing.Algorithm.
func (c *Config) Algorithm() (keys.Algorithm, error) {
	return keys.ParseAlgorithm(c.Signing.Algorithm)
}

// StoreTargets returns the primary store and its mirrors in registry form.
func (c *Config) StoreTargets() (registry.Target, []registry.Target) {
	primary := registry.Target{
		Backend: c.Store.Backend,
		Options: registry.Options{
			Dir:         c.WorkspaceDir,
			RedisURL:    c.Store.RedisURL,
			RedisPrefix: c.Store.RedisPrefix,
			GRPCTarget:  c.Store.GRPCTarget,
			Timeout:     c.Store.Timeout,
		},
	}
	mirrors := make([]registry.Target, 0, len(c.Store.Mirrors))
	for _, m := range c.Store.Mirrors {
		timeout := m.Timeout
		if timeout == 0 {
			timeout = c.Store.Timeout
		}
		mirrors = append(mirrors, registry.Target{
			ID:      m.ID,
			Backend: m.Backend,
			Options: registry.Options{
				Dir:         m.Dir,
				RedisURL:    m.RedisURL,
				RedisPrefix: m.RedisPrefix,
				GRPCTarget:  m.GRPCTarget,
				Timeout:     timeout,
			},
		})
	}
	return primary, mirrors
}
