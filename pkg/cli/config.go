// Package cli holds configuration loading and terminal output helpers for
// the admitline command. Configuration lives in ~/.admitline/config.yaml
// and supports named contexts (staging, production) selected per invocation,
// similar to kubectl's context management.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the configuration directory under $HOME.
	DefaultBaseDir = ".admitline"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.yaml"
)

// Config is the on-disk configuration: named contexts plus the active one.
type Config struct {
	// CurrentContext is the name of the active context.
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts maps context name to its settings.
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one named deployment configuration.
type Context struct {
	Name string `yaml:"name"`

	// Server is the HTTP listen address, e.g. ":8080".
	Server string `yaml:"server,omitempty"`

	// DataDir is where the local database lives.
	DataDir string `yaml:"data_dir,omitempty"`

	// Inference holds the ordered hosted-inference credentials; the first
	// is tried first when generating replies.
	Inference []InferenceCredential `yaml:"inference,omitempty"`

	// Models is the ordered model ladder tried per credential.
	Models []string `yaml:"models,omitempty"`

	// FactsFile points at a text file of pinned authoritative facts for
	// the answer prompt; empty uses the built-in set.
	FactsFile string `yaml:"facts_file,omitempty"`

	// TTS configures speech synthesis.
	TTS TTSConfig `yaml:"tts,omitempty"`

	// Docs configures where the retrieval corpus lives.
	Docs DocsConfig `yaml:"docs,omitempty"`

	// Room configures realtime room join tokens; optional.
	Room RoomConfig `yaml:"room,omitempty"`
}

// InferenceCredential is one hosted-inference API key.
type InferenceCredential struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
}

// TTSConfig configures the synthesis backend.
type TTSConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	VoiceID string `yaml:"voice_id,omitempty"`
}

// DocsConfig selects the corpus source: a local directory, or an S3 bucket
// when Bucket is set.
type DocsConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// RoomConfig holds the media-server API key pair.
type RoomConfig struct {
	APIKey    string `yaml:"api_key,omitempty"`
	APISecret string `yaml:"api_secret,omitempty"`
}

// LoadConfig loads the configuration, creating an empty file on first run.
// customPath overrides the default location when non-empty.
func LoadConfig(customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cli: home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, DefaultConfigFile)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("cli: config directory: %w", err)
	}

	cfg := &Config{
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration to disk. Credentials live in it, so the
// file is not group or world readable.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string { return c.configPath }

// AddContext adds or replaces a context and persists.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context and persists.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context and persists.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the named context, or the current one when name is
// empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, errors.New("cli: no context selected; add one with 'admitline config add-context'")
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("cli: context %q not found", name)
	}
	return ctx, nil
}
