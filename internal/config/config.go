package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir       = ".gatekeeper"
	DefaultConfigFile      = "config.yaml"
	DefaultLogFile         = "audit.log"
	DefaultPromptFile      = "prompt.txt"
	DefaultPermissionsFile = "permissions.yaml"
)

const (
	defaultPipelineTimeout = 30 * time.Second
	defaultLLMTimeout      = 30 * time.Second
	defaultAPITimeout      = 10 * time.Second
	defaultFileContextMax  = 16 * 1024
)

type Config struct {
	ConfigDir  string
	ConfigPath string
	LogPath    string
	Debug      bool

	// APIKey enables the HTTP transport. It is only read from the
	// environment, never from the config file.
	APIKey string

	Timeouts    Timeouts
	LLM         LLMConfig
	FileContext FileContextConfig
	Paths       PathsConfig
}

// Timeouts bound the evaluation. API is the share of LLM given to the HTTP
// transport before falling back to the local one.
type Timeouts struct {
	Pipeline time.Duration `yaml:"pipeline"`
	LLM      time.Duration `yaml:"llm"`
	API      time.Duration `yaml:"api"`
}

type LLMConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	APIModel   string `yaml:"api_model"`
	LocalModel string `yaml:"local_model"`
	// DisableLocal turns off the local claude fallback.
	DisableLocal bool `yaml:"disable_local"`
}

type FileContextConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

type PathsConfig struct {
	Prompt             string `yaml:"prompt"`
	Permissions        string `yaml:"permissions"`
	ClaudeUserSettings string `yaml:"claude_user_settings"`
}

// fileConfig is the on-disk shape of config.yaml.
type fileConfig struct {
	Debug       bool              `yaml:"debug"`
	LogPath     string            `yaml:"log"`
	Timeouts    Timeouts          `yaml:"timeouts"`
	LLM         LLMConfig         `yaml:"llm"`
	FileContext FileContextConfig `yaml:"file_context"`
	Paths       PathsConfig       `yaml:"paths"`
}

// Load builds the configuration: defaults, then config.yaml, then the
// environment, then the explicit arguments (from command-line flags). Empty
// arguments leave the lower layers in place.
func Load(configPath, logPath string, debug bool) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)

	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigDir:  configDir,
		ConfigPath: filepath.Join(configDir, DefaultConfigFile),
		LogPath:    filepath.Join(configDir, DefaultLogFile),
		Timeouts: Timeouts{
			Pipeline: defaultPipelineTimeout,
			LLM:      defaultLLMTimeout,
			API:      defaultAPITimeout,
		},
		FileContext: FileContextConfig{MaxBytes: defaultFileContextMax},
		Paths: PathsConfig{
			Prompt:             filepath.Join(configDir, DefaultPromptFile),
			Permissions:        filepath.Join(configDir, DefaultPermissionsFile),
			ClaudeUserSettings: filepath.Join(homeDir, ".claude", "settings.json"),
		},
	}

	if configPath != "" {
		cfg.ConfigPath = configPath
	}
	if err := cfg.loadFile(homeDir); err != nil {
		return nil, err
	}

	cfg.loadEnv()

	if logPath != "" {
		cfg.LogPath = logPath
	}
	if debug {
		cfg.Debug = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(homeDir string) error {
	data, err := os.ReadFile(c.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", c.ConfigPath, err)
	}

	c.Debug = fc.Debug
	if fc.LogPath != "" {
		c.LogPath = expandHome(fc.LogPath, homeDir)
	}
	if fc.Timeouts.Pipeline > 0 {
		c.Timeouts.Pipeline = fc.Timeouts.Pipeline
	}
	if fc.Timeouts.LLM > 0 {
		c.Timeouts.LLM = fc.Timeouts.LLM
	}
	if fc.Timeouts.API > 0 {
		c.Timeouts.API = fc.Timeouts.API
	}
	c.LLM = fc.LLM
	if fc.FileContext.MaxBytes > 0 {
		c.FileContext.MaxBytes = fc.FileContext.MaxBytes
	}
	if fc.Paths.Prompt != "" {
		c.Paths.Prompt = expandHome(fc.Paths.Prompt, homeDir)
	}
	if fc.Paths.Permissions != "" {
		c.Paths.Permissions = expandHome(fc.Paths.Permissions, homeDir)
	}
	if fc.Paths.ClaudeUserSettings != "" {
		c.Paths.ClaudeUserSettings = expandHome(fc.Paths.ClaudeUserSettings, homeDir)
	}
	return nil
}

func (c *Config) loadEnv() {
	if key := os.Getenv("GATEKEEPER_API_KEY"); key != "" {
		c.APIKey = key
	} else {
		c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if v := os.Getenv("GATEKEEPER_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if m := os.Getenv("GATEKEEPER_MODEL"); m != "" {
		c.LLM.APIModel = m
		c.LLM.LocalModel = m
	}
}

func (c *Config) validate() error {
	if c.Timeouts.API > c.Timeouts.LLM {
		return fmt.Errorf("timeouts.api (%s) must not exceed timeouts.llm (%s)", c.Timeouts.API, c.Timeouts.LLM)
	}
	if c.Timeouts.LLM > c.Timeouts.Pipeline {
		return fmt.Errorf("timeouts.llm (%s) must not exceed timeouts.pipeline (%s)", c.Timeouts.LLM, c.Timeouts.Pipeline)
	}
	return nil
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
